package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/JaimeStill/vertex-agent/internal/dispatch"

// Dispatcher selects the executor for an agent's framework and runs it.
type Dispatcher struct {
	resolver  *Resolver
	executors map[reconcile.Framework]Executor
	tracer    trace.Tracer
	logger    *slog.Logger
}

func New(model Model, resolver *Resolver, logger *slog.Logger) *Dispatcher {
	logger = logger.With("system", "dispatch")
	return &Dispatcher{
		resolver: resolver,
		executors: map[reconcile.Framework]Executor{
			reconcile.FrameworkCustom:     &customExecutor{model: model},
			reconcile.FrameworkLangChain:  &toolLoopExecutor{model: model, maxTurns: MaxTurns},
			reconcile.FrameworkLangGraph:  &graphExecutor{model: model, maxTurns: MaxTurns, logger: logger},
			reconcile.FrameworkCrewAI:     unsupportedExecutor{framework: reconcile.FrameworkCrewAI},
			reconcile.FrameworkLlamaIndex: unsupportedExecutor{framework: reconcile.FrameworkLlamaIndex},
		},
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Run answers query with the agent described by cfg. Every failure is
// wrapped in ErrExecution; unsupported frameworks also match
// ErrUnsupportedFramework.
func (d *Dispatcher) Run(ctx context.Context, cfg *reconcile.AgentConfig, target Target, query string) (*Response, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.Run", trace.WithAttributes(
		attribute.String("agent.id", cfg.ID.String()),
		attribute.String("agent.framework", string(cfg.Framework)),
		attribute.String("agent.model", cfg.ModelID),
	))
	defer span.End()

	start := time.Now()
	resp, err := d.run(ctx, cfg, target, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("run failed",
			"agent", cfg.ID,
			"framework", cfg.Framework,
			"duration", time.Since(start),
			"error", err,
		)
		if !errors.Is(err, ErrExecution) {
			err = fmt.Errorf("%w: %w", ErrExecution, err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("agent.actions", len(resp.Actions)))
	d.logger.Info("run completed",
		"agent", cfg.ID,
		"framework", cfg.Framework,
		"actions", len(resp.Actions),
		"duration", time.Since(start),
	)
	return resp, nil
}

func (d *Dispatcher) run(ctx context.Context, cfg *reconcile.AgentConfig, target Target, query string) (*Response, error) {
	exec, ok := d.executors[cfg.Framework]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFramework, cfg.Framework)
	}
	if _, unsupported := exec.(unsupportedExecutor); unsupported {
		return exec.Execute(ctx, Call{Config: cfg, Target: target, Query: query})
	}

	tools, err := d.resolver.Resolve(ctx, cfg, target)
	if err != nil {
		return nil, err
	}

	return exec.Execute(ctx, Call{
		Config: cfg,
		Target: target,
		Query:  query,
		Tools:  tools,
	})
}
