// Package routes declares HTTP route groups that register onto a ServeMux
// and describe themselves in an OpenAPI document.
package routes

import (
	"net/http"

	"github.com/JaimeStill/vertex-agent/pkg/openapi"
)

// Route is a single method and pattern bound to a handler.
// Pattern is relative to the owning group's prefix. A route without a
// Handler is documented but not registered; another route in the group
// must serve it.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}

// Group represents a collection of routes under a common URL prefix.
// Groups can contain child groups for hierarchical route organization.
type Group struct {
	Prefix      string
	Tags        []string
	Description string
	Routes      []Route
	Children    []Group
}

// AddToSpec documents every route of the group (and its children) in spec.
// Operations without explicit tags inherit the group's tags.
func (g Group) AddToSpec(basePath string, spec *openapi.Spec) {
	g.addToSpec(basePath, nil, spec)
}

func (g Group) addToSpec(basePath string, parentTags []string, spec *openapi.Spec) {
	tags := g.Tags
	if len(tags) == 0 {
		tags = parentTags
	}

	prefix := basePath + g.Prefix

	for _, route := range g.Routes {
		if route.OpenAPI == nil {
			continue
		}

		op := route.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = tags
		}

		spec.AddOperation(prefix+route.Pattern, route.Method, op)
	}

	for _, child := range g.Children {
		child.addToSpec(prefix, tags, spec)
	}
}

func (g Group) register(mux *http.ServeMux, prefix string) {
	prefix += g.Prefix
	for _, route := range g.Routes {
		if route.Handler == nil {
			continue
		}
		mux.HandleFunc(route.Method+" "+prefix+route.Pattern, route.Handler)
	}
	for _, child := range g.Children {
		child.register(mux, prefix)
	}
}
