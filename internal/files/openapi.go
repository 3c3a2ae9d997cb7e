package files

import "github.com/JaimeStill/vertex-agent/pkg/openapi"

type spec struct {
	Upload        *openapi.Operation
	Session       *openapi.Operation
	DeleteSession *openapi.Operation
	URL           *openapi.Operation
	Content       *openapi.Operation
}

func sessionParam() *openapi.Parameter {
	return openapi.StringPathParam("session", "Upload session ID", sessionPattern.String())
}

var Spec = spec{
	Upload: &openapi.Operation{
		Summary:     "Upload files",
		Description: "Upload one or more files into a session. A session id is generated when none is given. PDFs have their page count extracted.",
		RequestBody: openapi.RequestBodyMultipart(&openapi.Schema{
			Type: "object",
			Properties: map[string]*openapi.Property{
				"files": {
					Type:        "array",
					Description: "Files to upload (repeat the field for several)",
					Items:       &openapi.Schema{Type: "string", Format: "binary"},
				},
				"session_id": {Type: "string", Description: "Existing session to add the files to"},
			},
			Required: []string{"files"},
		}),
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Files uploaded", "FileSession"),
			400: openapi.ResponseRef("BadRequest"),
			413: {Description: "Upload too large"},
		},
	},
	Session: &openapi.Operation{
		Summary:     "List session files",
		Description: "List a session's files with fresh download URLs. Unknown sessions return an empty list.",
		Parameters:  []*openapi.Parameter{sessionParam()},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Session files", "FileSession"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	DeleteSession: &openapi.Operation{
		Summary:    "Delete session",
		Parameters: []*openapi.Parameter{sessionParam()},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Session deleted", "FileDeleteResult"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	URL: &openapi.Operation{
		Summary:     "Get file URL",
		Description: "Issue a download URL. Cloud Storage URLs are signed and expire; other backends return the content route.",
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "File ID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Download URL", "FileLink"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	Content: &openapi.Operation{
		Summary:    "Download file",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "File ID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseBinary("File content"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
}

func (spec) Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"UploadedFile": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"file_id":      {Type: "string", Format: "uuid"},
				"session_id":   {Type: "string"},
				"filename":     {Type: "string", Description: "Original filename"},
				"content_type": {Type: "string", Description: "MIME type"},
				"size":         {Type: "integer", Format: "int64", Description: "Size in bytes"},
				"page_count":   {Type: "integer", Description: "Page count (PDFs only)"},
				"storage_key":  {Type: "string", Example: "3f1c.../9a2e....pdf"},
				"url":          {Type: "string", Description: "Download URL"},
				"created_at":   {Type: "string", Format: "date-time"},
			},
		},
		"FileSession": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"session_id": {Type: "string"},
				"files":      {Type: "array", Description: "UploadedFile entries"},
			},
			Required: []string{"session_id", "files"},
		},
		"FileLink": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"file_id":    {Type: "string", Format: "uuid"},
				"filename":   {Type: "string"},
				"url":        {Type: "string"},
				"expires_in": {Type: "string", Example: "15 minutes"},
			},
		},
		"FileDeleteResult": {
			Type: "object",
			Properties: map[string]*openapi.Property{
				"success": {Type: "boolean"},
				"deleted": {Type: "integer"},
				"message": {Type: "string"},
			},
		},
	}
}
