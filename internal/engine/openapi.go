package engine

import "github.com/JaimeStill/vertex-agent/pkg/openapi"

type spec struct {
	List *openapi.Operation
	Find *openapi.Operation
}

var targetParams = []*openapi.Parameter{
	openapi.QueryParam("projectId", "string", "Google Cloud project", false),
	openapi.QueryParam("project_id", "string", "Google Cloud project, preferred over projectId", false),
	openapi.QueryParam("region", "string", "Vertex AI region", false),
}

var Spec = spec{
	List: &openapi.Operation{
		Summary:     "List reasoning engines",
		Description: "List the reasoning engines of a project and region",
		Parameters:  targetParams,
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Reasoning engines", "EngineList"),
			400: openapi.ResponseRef("BadRequest"),
			500: openapi.ResponseRef("RemoteError"),
		},
	},
	Find: &openapi.Operation{
		Summary:    "Find reasoning engine",
		Parameters: append([]*openapi.Parameter{openapi.PathParam("id", "Reasoning engine ID")}, targetParams...),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Reasoning engine", "Engine"),
			400: openapi.ResponseRef("BadRequest"),
			500: openapi.ResponseRef("RemoteError"),
		},
	},
}

func (spec) Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Engine": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"name":        {Type: "string", Example: "projects/demo/locations/us-central1/reasoningEngines/123"},
				"displayName": {Type: "string"},
				"description": {Type: "string"},
				"framework":   {Type: "string"},
				"createTime":  {Type: "string", Format: "date-time"},
				"updateTime":  {Type: "string", Format: "date-time"},
			},
		},
		"EngineList": {
			Type:  "array",
			Items: openapi.SchemaRef("Engine"),
		},
	}
}
