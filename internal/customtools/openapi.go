package customtools

import "github.com/JaimeStill/vertex-agent/pkg/openapi"

type spec struct {
	List    *openapi.Operation
	Find    *openapi.Operation
	Create  *openapi.Operation
	Execute *openapi.Operation
}

var Spec = spec{
	List: &openapi.Operation{
		Summary:     "List custom tools",
		Description: "List custom tools with pagination and optional filters",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Items per page", false),
			openapi.QueryParam("search", "string", "Search in name and description", false),
			openapi.QueryParam("name", "string", "Filter by name (contains)", false),
			openapi.QueryParam("owner_id", "string", "Filter by owner", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Custom tools list", "CustomToolPageResult"),
		},
	},
	Find: &openapi.Operation{
		Summary: "Find custom tool",
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Custom tool ID"),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Custom tool details", "CustomTool"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Create: &openapi.Operation{
		Summary:     "Create custom tool",
		Description: "Validate tool code in the sandbox and store it. The code must define exactly one public function.",
		RequestBody: openapi.RequestBodyJSON("CreateCustomToolCommand", true),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Custom tool created", "CustomTool"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Execute: &openapi.Operation{
		Summary:     "Execute custom tool",
		Description: "Invoke the tool with the request body as keyword arguments. Keys that are not declared parameters are ignored. Tool failures are returned in the result string.",
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Custom tool ID"),
		},
		RequestBody: &openapi.RequestBody{
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "object"}},
			},
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Tool result", "CustomToolResult"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
}

func (spec) Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"CustomTool": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"id":          {Type: "string", Format: "uuid"},
				"name":        {Type: "string"},
				"description": {Type: "string"},
				"code":        {Type: "string", Description: "Tool source"},
				"function":    {Type: "string", Description: "Name of the tool's public function"},
				"parameters":  {Type: "array", Description: "Declared parameter names"},
				"owner_id":    {Type: "string"},
				"created_at":  {Type: "string", Format: "date-time"},
			},
		},
		"CreateCustomToolCommand": {
			Type:     "object",
			Required: []string{"name", "code"},
			Properties: map[string]*openapi.Property{
				"name":        {Type: "string"},
				"description": {Type: "string"},
				"code":        {Type: "string", Example: "def add(a, b):\n    return a + b\n"},
				"owner_id":    {Type: "string"},
			},
		},
		"CustomToolResult": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"result": {Type: "string", Description: "Stringified return value or error text"},
			},
		},
		"CustomToolPageResult": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"data":        {Type: "array", Description: "CustomTool items"},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
	}
}
