package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"google.golang.org/genai"
)

// Param declares one tool argument to the model.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Tool is a callable the model may request by name. Invoke never fails:
// problems are reported in the returned string.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Invoke      func(ctx context.Context, args map[string]any) string
}

// ToolSet is the explicit set of tools available to a single run.
type ToolSet struct {
	tools     map[string]Tool
	grounding []*genai.Tool
}

func NewToolSet() *ToolSet {
	return &ToolSet{tools: make(map[string]Tool)}
}

// Add registers t, suffixing its name when it collides with an existing tool.
// The registered name is returned.
func (s *ToolSet) Add(t Tool) string {
	name := t.Name
	for i := 2; ; i++ {
		if _, taken := s.tools[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s_%d", t.Name, i)
	}
	t.Name = name
	s.tools[name] = t
	return name
}

// AddGrounding registers a model-side tool such as retrieval or search.
func (s *ToolSet) AddGrounding(t *genai.Tool) {
	s.grounding = append(s.grounding, t)
}

func (s *ToolSet) Get(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// Names lists the callable tool names in sorted order.
func (s *ToolSet) Names() []string {
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *ToolSet) Len() int {
	return len(s.tools)
}

// Invoke runs the named tool. Unknown names produce an error string so the
// model can recover on its next turn.
func (s *ToolSet) Invoke(ctx context.Context, name string, args map[string]any) string {
	t, ok := s.tools[name]
	if !ok {
		return fmt.Sprintf("Error executing tool: unknown tool %s", name)
	}
	return t.Invoke(ctx, coerceArgs(args))
}

// Declarations returns the genai tool list: one entry carrying every
// function declaration, followed by the grounding tools.
func (s *ToolSet) Declarations(includeFunctions bool) []*genai.Tool {
	var out []*genai.Tool

	if includeFunctions && len(s.tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(s.tools))
		for _, name := range s.Names() {
			decls = append(decls, s.tools[name].declaration())
		}
		out = append(out, &genai.Tool{FunctionDeclarations: decls})
	}

	return append(out, s.grounding...)
}

// declaration describes every argument as a string. Values are decoded
// as JSON on the way back in, so numbers and booleans survive the trip.
func (t Tool) declaration() *genai.FunctionDeclaration {
	decl := &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
	}
	if len(t.Params) == 0 {
		return decl
	}

	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(t.Params)),
	}
	for _, p := range t.Params {
		schema.Properties[p.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	decl.Parameters = schema
	return decl
}

func coerceArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			switch decoded.(type) {
			case float64, bool, []any, map[string]any:
				out[k] = decoded
				continue
			}
		}
		out[k] = s
	}
	return out
}
