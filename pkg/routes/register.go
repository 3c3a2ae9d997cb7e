package routes

import (
	"net/http"

	"github.com/JaimeStill/vertex-agent/pkg/openapi"
)

// Register mounts groups on mux and documents them in spec.
// Mux patterns are relative to the module (the module strips basePath);
// spec paths include basePath so the document reflects public URLs.
func Register(mux *http.ServeMux, basePath string, spec *openapi.Spec, groups ...Group) {
	for _, group := range groups {
		group.register(mux, "")
		if spec != nil {
			group.AddToSpec(basePath, spec)
		}
	}
}
