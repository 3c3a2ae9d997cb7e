package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/customtools"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/internal/sandbox"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// CustomTools is the subset of the custom tool system the resolver needs.
type CustomTools interface {
	Find(ctx context.Context, id uuid.UUID) (*customtools.CustomTool, error)
	Execute(ctx context.Context, id uuid.UUID, params map[string]any) (string, error)
}

// Resolver builds the ToolSet for a run from the agent's tool references.
type Resolver struct {
	sandbox *sandbox.Sandbox
	custom  CustomTools
	now     func() time.Time
	logger  *slog.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithClock replaces the time source used by the current_time tool.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(sb *sandbox.Sandbox, custom CustomTools, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		sandbox: sb,
		custom:  custom,
		now:     time.Now,
		logger:  logger.With("system", "tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps every tool reference of cfg to a callable or grounding tool.
// Inline customCode that fails validation aborts the run; a dangling custom
// tool id does not, it becomes a tool that reports the missing id.
func (r *Resolver) Resolve(ctx context.Context, cfg *reconcile.AgentConfig, target Target) (*ToolSet, error) {
	set := NewToolSet()

	for _, ref := range cfg.Tools {
		if ref.IsCustom() {
			tool, err := r.customTool(ctx, ref.CustomToolID)
			if err != nil {
				return nil, err
			}
			set.Add(tool)
			continue
		}

		switch ref.Name {
		case reconcile.ToolCalculator:
			set.Add(r.calculator())
		case reconcile.ToolCurrentTime:
			set.Add(r.currentTime())
		case reconcile.ToolRetrieveDocs:
			if g := retrieval(cfg, target); g != nil {
				set.AddGrounding(g)
			} else {
				r.logger.Warn("retrieve_docs without datastore", "agent", cfg.ID)
			}
		case reconcile.ToolSearch:
			set.AddGrounding(&genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
		default:
			r.logger.Warn("unknown predefined tool", "agent", cfg.ID, "tool", ref.Name)
		}
	}

	if cfg.CustomCode != "" {
		tool, err := r.inlineTool(ctx, cfg.CustomCode)
		if err != nil {
			return nil, err
		}
		set.Add(tool)
	}

	return set, nil
}

func (r *Resolver) calculator() Tool {
	return Tool{
		Name:        reconcile.ToolCalculator,
		Description: "Evaluate an arithmetic expression such as (2 + 3) * 4.",
		Params:      []Param{{Name: "expression", Description: "Expression to evaluate", Required: true}},
		Invoke: func(ctx context.Context, args map[string]any) string {
			expr := fmt.Sprint(args["expression"])
			out, err := r.sandbox.Eval(ctx, expr)
			if err != nil {
				return "Error: " + err.Error()
			}
			return out
		},
	}
}

func (r *Resolver) currentTime() Tool {
	return Tool{
		Name:        reconcile.ToolCurrentTime,
		Description: "Return the current date and time in RFC 3339 format.",
		Params:      []Param{{Name: "timezone", Description: "IANA time zone name, defaults to UTC"}},
		Invoke: func(ctx context.Context, args map[string]any) string {
			loc := time.UTC
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return "Error: unknown timezone " + tz
				}
				loc = l
			}
			return r.now().In(loc).Format(time.RFC3339)
		},
	}
}

func (r *Resolver) customTool(ctx context.Context, rawID string) (Tool, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return danglingTool(rawID), nil
	}

	stored, err := r.custom.Find(ctx, id)
	if errors.Is(err, customtools.ErrNotFound) {
		r.logger.Warn("custom tool not found", "id", rawID)
		return danglingTool(rawID), nil
	}
	if err != nil {
		return Tool{}, fmt.Errorf("resolve custom tool %s: %w", rawID, err)
	}

	params := make([]Param, 0, len(stored.Parameters))
	for _, p := range stored.Parameters {
		params = append(params, Param{Name: p})
	}

	return Tool{
		Name:        stored.Function,
		Description: describe(stored.Name, stored.Description),
		Params:      params,
		Invoke: func(ctx context.Context, args map[string]any) string {
			out, err := r.custom.Execute(ctx, id, args)
			if err != nil {
				return fmt.Sprintf("Error executing tool: %v", err)
			}
			return out
		},
	}, nil
}

func (r *Resolver) inlineTool(ctx context.Context, code string) (Tool, error) {
	info, err := r.sandbox.Validate(ctx, code)
	if err != nil {
		return Tool{}, fmt.Errorf("custom code: %w", err)
	}

	params := make([]Param, 0, len(info.Params))
	for _, p := range info.Params {
		params = append(params, Param{Name: p})
	}

	return Tool{
		Name:        info.Name,
		Description: "Agent-defined function " + info.Name,
		Params:      params,
		Invoke: func(ctx context.Context, args map[string]any) string {
			return r.sandbox.Run(ctx, code, args)
		},
	}, nil
}

// danglingTool stands in for a custom tool id that no longer resolves.
func danglingTool(id string) Tool {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return Tool{
		Name:        "custom_" + sanitize(short),
		Description: "Unavailable custom tool " + id,
		Invoke: func(context.Context, map[string]any) string {
			return fmt.Sprintf("Error executing tool: tool %s not found", id)
		},
	}
}

func retrieval(cfg *reconcile.AgentConfig, target Target) *genai.Tool {
	lg, ok := cfg.FrameworkConfig.(*reconcile.LangGraphConfig)
	if !ok || lg.DataStore == nil || lg.DataStore.ID == "" {
		return nil
	}

	location := lg.DataStore.Region
	if location == "" {
		location = "global"
	}

	return &genai.Tool{
		Retrieval: &genai.Retrieval{
			VertexAISearch: &genai.VertexAISearch{
				Datastore: fmt.Sprintf("projects/%s/locations/%s/collections/default_collection/dataStores/%s",
					target.Project, location, lg.DataStore.ID),
			},
		},
	}
}

func describe(name, description string) string {
	if description == "" {
		return name
	}
	return name + ": " + description
}

func sanitize(s string) string {
	out := []byte(s)
	for i, c := range out {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			out[i] = '_'
		}
	}
	return string(out)
}
