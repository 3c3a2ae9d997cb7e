package agents

import "github.com/JaimeStill/vertex-agent/pkg/openapi"

type spec struct {
	List        *openapi.Operation
	Search      *openapi.Operation
	Find        *openapi.Operation
	Create      *openapi.Operation
	Update      *openapi.Operation
	Delete      *openapi.Operation
	Deploy      *openapi.Operation
	Playground  *openapi.Operation
	Query       *openapi.Operation
	Tests       *openapi.Operation
	Deployments *openapi.Operation
}

func placementParams() []*openapi.Parameter {
	return []*openapi.Parameter{
		openapi.QueryParam("project_id", "string", "Google Cloud project (wins over projectId when non-empty)", false),
		openapi.QueryParam("projectId", "string", "Google Cloud project", false),
		openapi.QueryParam("region", "string", "Vertex AI region (default us-central1)", false),
	}
}

func withID(params ...*openapi.Parameter) []*openapi.Parameter {
	return append([]*openapi.Parameter{openapi.PathParam("id", "Agent ID")}, params...)
}

var (
	frameworkEnum  = []string{"CUSTOM", "LANGCHAIN", "LANGGRAPH", "CREWAI", "LLAMAINDEX"}
	statusEnum     = []string{"DRAFT", "TESTED", "DEPLOYED", "DELETED"}
	deploymentEnum = []string{"AGENT_ENGINE", "CLOUD_RUN"}
)

var Spec = spec{
	List: &openapi.Operation{
		Summary:     "List agents",
		Description: "List agents with pagination. DELETED agents are only returned when status=DELETED is requested.",
		Parameters: append([]*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Items per page", false),
			openapi.QueryParam("search", "string", "Search in display name and description", false),
			openapi.QueryParam("sort", "string", "Comma-separated sort fields. Prefix with - for descending", false),
			openapi.QueryParam("status", "string", "DRAFT, TESTED, DEPLOYED or DELETED", false),
			openapi.QueryParam("framework", "string", "Filter by framework", false),
		}, placementParams()...),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Agents list", "AgentPageResult"),
		},
	},
	Search: &openapi.Operation{
		Summary:     "Search agents",
		Description: "List agents with the page request in the body",
		RequestBody: openapi.RequestBodyJSON("PageRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Agents list", "AgentPageResult"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Find: &openapi.Operation{
		Summary:    "Find agent",
		Parameters: withID(placementParams()...),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Agent details with active deployments", "Agent"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Create: &openapi.Operation{
		Summary:     "Create agent",
		Description: "Reconcile the payload into a DRAFT agent. With deploy=true the agent is deployed immediately and a project id is required.",
		Parameters: append([]*openapi.Parameter{
			openapi.QueryParam("deploy", "boolean", "Deploy after creating", false),
		}, placementParams()...),
		RequestBody: openapi.RequestBodyJSON("AgentPayload", true),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Agent created", "Agent"),
			400: openapi.ResponseRef("BadRequest"),
			500: openapi.ResponseRef("RemoteError"),
		},
	},
	Update: &openapi.Operation{
		Summary:     "Update agent",
		Description: "Merge the payload over the stored agent. Absent fields keep their values. With updateDeployment=true the ACTIVE Agent Engine deployment is updated too.",
		Parameters: withID(append([]*openapi.Parameter{
			openapi.QueryParam("updateDeployment", "boolean", "Push the update to the active deployment", false),
		}, placementParams()...)...),
		RequestBody: openapi.RequestBodyJSON("AgentPayload", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Agent updated", "Agent"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
			500: openapi.ResponseRef("RemoteError"),
		},
	},
	Delete: &openapi.Operation{
		Summary:     "Delete agent",
		Description: "Mark the agent DELETED and remove its active deployments. Remote failures are logged and do not fail the request.",
		Parameters:  withID(placementParams()...),
		Responses: map[int]*openapi.Response{
			204: {Description: "Agent deleted"},
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Deploy: &openapi.Operation{
		Summary:     "Deploy agent",
		Description: "Deploy to Agent Engine or Cloud Run. Returns the existing deployment when one is already ACTIVE for the same project, region and type.",
		Parameters:  withID(placementParams()...),
		RequestBody: openapi.RequestBodyJSON("DeployRequest", false),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Active deployment", "Deployment"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			409: openapi.ResponseRef("Conflict"),
			500: openapi.ResponseRef("RemoteError"),
		},
	},
	Playground: &openapi.Operation{
		Summary:     "Run a playground turn",
		Description: "Run one turn with a stored agent (id) or a new DRAFT built from the payload. A failed turn still answers 200 with success=false and records a test.",
		Parameters:  placementParams(),
		RequestBody: openapi.RequestBodyJSON("PlaygroundRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Playground result", "PlaygroundResult"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Query: &openapi.Operation{
		Summary:     "Query deployed agent",
		Description: "Run a turn against the agent's ACTIVE deployment in the given project and region",
		Parameters:  withID(placementParams()...),
		RequestBody: openapi.RequestBodyJSON("QueryRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Agent response", "AgentResponse"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			500: openapi.ResponseRef("RemoteError"),
		},
	},
	Tests: &openapi.Operation{
		Summary: "List test history",
		Parameters: withID(
			openapi.QueryParam("limit", "integer", "Maximum records (default 20, max 200)", false),
		),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Test records, newest first", "TestRecordList"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Deployments: &openapi.Operation{
		Summary:    "List deployments",
		Parameters: withID(),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Deployments, newest version first", "DeploymentList"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
}

func (spec) Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Agent": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"id":                {Type: "string", Format: "uuid"},
				"displayName":       {Type: "string"},
				"description":       {Type: "string"},
				"framework":         {Type: "string", Enum: frameworkEnum},
				"modelId":           {Type: "string", Example: "gemini-1.5-pro"},
				"generationConfig":  {Type: "object", Description: "temperature, maxOutputTokens, topP, topK"},
				"systemInstruction": {Type: "string"},
				"frameworkConfig":   {Type: "object", Description: "Framework specific settings"},
				"tools":             {Type: "array", Description: "Predefined tool names or custom tool references"},
				"customCode":        {Type: "string", Description: "Inline tool source"},
				"status":            {Type: "string", Enum: statusEnum},
				"projectId":         {Type: "string"},
				"region":            {Type: "string"},
				"deployments":       {Type: "array", Description: "Active deployments"},
				"createdAt":         {Type: "string", Format: "date-time"},
				"updatedAt":         {Type: "string", Format: "date-time"},
			},
		},
		"AgentPayload": {
			Type:        "object",
			Description: "Canonical or legacy agent payload. Unknown keys are ignored.",
			Required:    []string{"displayName"},
			Properties: map[string]*openapi.Property{
				"displayName":       {Type: "string"},
				"description":       {Type: "string"},
				"framework":         {Type: "string", Enum: frameworkEnum},
				"modelId":           {Type: "string"},
				"model":             {Type: "string", Example: "projects/p/locations/us-central1/publishers/google/models/gemini-1.5-pro"},
				"temperature":       {Type: "number"},
				"maxOutputTokens":   {Type: "integer"},
				"generationConfig":  {Type: "object"},
				"systemInstruction": {Type: "object", Description: "A string or {\"parts\": [{\"text\": ...}]}"},
				"frameworkConfig":   {Type: "object"},
				"tools":             {Type: "array"},
				"customCode":        {Type: "string"},
				"deploymentType":    {Type: "string", Description: "Target used with deploy=true", Enum: deploymentEnum},
			},
		},
		"AgentPageResult": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"data":        {Type: "array", Description: "Agent items"},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"DeployRequest": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"deploymentType": {Type: "string", Description: "Defaults to AGENT_ENGINE", Enum: deploymentEnum},
			},
		},
		"Deployment": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"id":             {Type: "string", Format: "uuid"},
				"agentId":        {Type: "string", Format: "uuid"},
				"deploymentType": {Type: "string", Enum: deploymentEnum},
				"version":        {Type: "integer"},
				"projectId":      {Type: "string"},
				"region":         {Type: "string"},
				"resourceName":   {Type: "string"},
				"status":         {Type: "string", Enum: []string{"PENDING", "ACTIVE", "FAILED", "DELETED"}},
				"endpointUrl":    {Type: "string"},
				"error":          {Type: "string"},
				"createdAt":      {Type: "string", Format: "date-time"},
				"updatedAt":      {Type: "string", Format: "date-time"},
			},
		},
		"DeploymentList": {
			Type:  "array",
			Items: openapi.SchemaRef("Deployment"),
		},
		"PlaygroundRequest": {
			Type:        "object",
			Description: "An agent payload or an agent id, plus the query",
			Required:    []string{"query"},
			Properties: map[string]*openapi.Property{
				"query": {Type: "string"},
				"id":    {Type: "string", Format: "uuid", Description: "Stored agent to run; other fields override it for this run"},
			},
		},
		"PlaygroundResult": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"agentId":    {Type: "string", Format: "uuid"},
				"success":    {Type: "boolean"},
				"response":   {Type: "object", Description: "AgentResponse"},
				"test":       {Type: "object", Description: "TestRecord"},
				"durationMs": {Type: "integer"},
			},
		},
		"QueryRequest": {
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*openapi.Property{
				"query": {Type: "string"},
			},
		},
		"AgentResponse": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"textResponse": {Type: "string"},
				"actions":      {Type: "array", Description: "Tool invocations"},
				"messages":     {Type: "array"},
			},
		},
		"TestRecord": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"id":        {Type: "string", Format: "uuid"},
				"agentId":   {Type: "string", Format: "uuid"},
				"query":     {Type: "string"},
				"response":  {Type: "string"},
				"metrics":   {Type: "object", Description: "duration_ms, success, framework, actions, error"},
				"success":   {Type: "boolean"},
				"createdAt": {Type: "string", Format: "date-time"},
			},
		},
		"TestRecordList": {
			Type:  "array",
			Items: openapi.SchemaRef("TestRecord"),
		},
	}
}
