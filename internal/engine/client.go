package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/retry"
	"github.com/JaimeStill/vertex-agent/pkg/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const tracerName = "github.com/JaimeStill/vertex-agent/internal/engine"

// Config tunes calls to the control plane.
type Config struct {
	Timeout       time.Duration
	Retry         retry.Config
	StagingBucket string
	PythonVersion string
}

type regionClients struct {
	engines   *aiplatform.ReasoningEngineClient
	execution *aiplatform.ReasoningEngineExecutionClient
}

// Client implements Remote over the aiplatform v1beta1 API. One pair of
// gRPC clients is kept per region because Agent Engine is only reachable
// through regional endpoints.
type Client struct {
	cfg     Config
	staging storage.System
	opts    []option.ClientOption

	mu      sync.Mutex
	regions map[string]*regionClients

	tracer trace.Tracer
	logger *slog.Logger
}

// New creates a Client. staging receives requirements files when
// cfg.StagingBucket is set; it may be nil otherwise.
func New(cfg Config, staging storage.System, logger *slog.Logger, opts ...option.ClientOption) *Client {
	return &Client{
		cfg:     cfg,
		staging: staging,
		opts:    opts,
		regions: make(map[string]*regionClients),
		tracer:  otel.Tracer(tracerName),
		logger:  logger.With("system", "engine"),
	}
}

func (c *Client) Create(ctx context.Context, target Target, payload map[string]any) (*Engine, error) {
	ctx, span := c.start(ctx, "engine.Create", attribute.String("engine.project", target.Project), attribute.String("engine.region", target.Region))
	defer span.End()

	cl, err := c.clients(ctx, target.Region)
	if err != nil {
		return nil, c.fail(span, err)
	}

	reqURI, err := c.stage(ctx, payload)
	if err != nil {
		return nil, c.fail(span, err)
	}

	resource, err := BuildEngine(payload, reqURI, c.cfg.PythonVersion)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: %v", ErrRemote, err))
	}

	op, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*aiplatform.CreateReasoningEngineOperation, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return cl.engines.CreateReasoningEngine(callCtx, &aiplatformpb.CreateReasoningEngineRequest{
			Parent:          target.Parent(),
			ReasoningEngine: resource,
		})
	})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: create reasoning engine: %v", ErrRemote, err))
	}

	created, err := op.Wait(ctx)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: wait for reasoning engine: %v", ErrRemote, err))
	}

	e := FromProto(created)
	span.SetAttributes(attribute.String("engine.name", e.Name))
	c.logger.Info("engine created", "name", e.Name, "display_name", e.DisplayName)
	return e, nil
}

func (c *Client) Get(ctx context.Context, name string) (*Engine, error) {
	ctx, span := c.start(ctx, "engine.Get", attribute.String("engine.name", name))
	defer span.End()

	target, _, err := ParseName(name)
	if err != nil {
		return nil, c.fail(span, err)
	}
	cl, err := c.clients(ctx, target.Region)
	if err != nil {
		return nil, c.fail(span, err)
	}

	pb, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*aiplatformpb.ReasoningEngine, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return cl.engines.GetReasoningEngine(callCtx, &aiplatformpb.GetReasoningEngineRequest{Name: name})
	})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: get reasoning engine: %v", ErrRemote, err))
	}
	return FromProto(pb), nil
}

func (c *Client) List(ctx context.Context, target Target) ([]Engine, error) {
	ctx, span := c.start(ctx, "engine.List", attribute.String("engine.project", target.Project), attribute.String("engine.region", target.Region))
	defer span.End()

	cl, err := c.clients(ctx, target.Region)
	if err != nil {
		return nil, c.fail(span, err)
	}

	engines, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) ([]Engine, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()

		it := cl.engines.ListReasoningEngines(callCtx, &aiplatformpb.ListReasoningEnginesRequest{Parent: target.Parent()})
		out := []Engine{}
		for {
			pb, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			out = append(out, *FromProto(pb))
		}
	})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: list reasoning engines: %v", ErrRemote, err))
	}
	return engines, nil
}

// Update pushes a new configuration to an engine: names, the query
// method carrying the agent config and, when staging is configured, the
// requirements for the payload's framework.
func (c *Client) Update(ctx context.Context, name string, payload map[string]any) (*Engine, error) {
	ctx, span := c.start(ctx, "engine.Update", attribute.String("engine.name", name))
	defer span.End()

	target, _, err := ParseName(name)
	if err != nil {
		return nil, c.fail(span, err)
	}
	cl, err := c.clients(ctx, target.Region)
	if err != nil {
		return nil, c.fail(span, err)
	}

	reqURI, err := c.stage(ctx, payload)
	if err != nil {
		return nil, c.fail(span, err)
	}

	resource, err := BuildEngine(payload, reqURI, c.cfg.PythonVersion)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: %v", ErrRemote, err))
	}
	resource.Name = name

	mask := []string{"display_name", "description", "spec.class_methods"}
	if reqURI != "" {
		mask = append(mask, "spec.package_spec.requirements_gcs_uri")
	}

	op, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*aiplatform.UpdateReasoningEngineOperation, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return cl.engines.UpdateReasoningEngine(callCtx, &aiplatformpb.UpdateReasoningEngineRequest{
			ReasoningEngine: resource,
			UpdateMask:      &fieldmaskpb.FieldMask{Paths: mask},
		})
	})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: update reasoning engine: %v", ErrRemote, err))
	}

	updated, err := op.Wait(ctx)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: wait for reasoning engine update: %v", ErrRemote, err))
	}

	c.logger.Info("engine updated", "name", name)
	return FromProto(updated), nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	ctx, span := c.start(ctx, "engine.Delete", attribute.String("engine.name", name))
	defer span.End()

	target, _, err := ParseName(name)
	if err != nil {
		return c.fail(span, err)
	}
	cl, err := c.clients(ctx, target.Region)
	if err != nil {
		return c.fail(span, err)
	}

	op, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*aiplatform.DeleteReasoningEngineOperation, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return cl.engines.DeleteReasoningEngine(callCtx, &aiplatformpb.DeleteReasoningEngineRequest{Name: name})
	})
	if err != nil {
		return c.fail(span, fmt.Errorf("%w: delete reasoning engine: %v", ErrRemote, err))
	}
	if err := op.Wait(ctx); err != nil {
		return c.fail(span, fmt.Errorf("%w: wait for reasoning engine delete: %v", ErrRemote, err))
	}

	c.logger.Info("engine deleted", "name", name)
	return nil
}

// Query sends query as the input of the engine's query method.
func (c *Client) Query(ctx context.Context, name, query string) (*dispatch.Response, error) {
	ctx, span := c.start(ctx, "engine.Query", attribute.String("engine.name", name))
	defer span.End()

	target, _, err := ParseName(name)
	if err != nil {
		return nil, c.fail(span, err)
	}
	cl, err := c.clients(ctx, target.Region)
	if err != nil {
		return nil, c.fail(span, err)
	}

	input, err := structpb.NewStruct(map[string]any{"input": query})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: encode query: %v", ErrRemote, err))
	}

	resp, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*aiplatformpb.QueryReasoningEngineResponse, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return cl.execution.QueryReasoningEngine(callCtx, &aiplatformpb.QueryReasoningEngineRequest{
			Name:        name,
			Input:       input,
			ClassMethod: queryMethod,
		})
	})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: query reasoning engine: %v", ErrRemote, err))
	}

	out, err := dispatch.Normalize(resp.GetOutput().AsInterface())
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("%w: %v", ErrRemote, err))
	}
	return out, nil
}

// Close releases every regional client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for region, cl := range c.regions {
		if err := cl.engines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s engine client: %w", region, err))
		}
		if err := cl.execution.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s execution client: %w", region, err))
		}
		delete(c.regions, region)
	}
	return errors.Join(errs...)
}

func (c *Client) clients(ctx context.Context, region string) (*regionClients, error) {
	if region == "" {
		region = reconcile.DefaultRegion
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.regions[region]; ok {
		return cl, nil
	}

	opts := append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)),
	}, c.opts...)

	dial := context.WithoutCancel(ctx)
	engines, err := aiplatform.NewReasoningEngineClient(dial, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create reasoning engine client: %v", ErrRemote, err)
	}
	execution, err := aiplatform.NewReasoningEngineExecutionClient(dial, opts...)
	if err != nil {
		engines.Close()
		return nil, fmt.Errorf("%w: create reasoning engine execution client: %v", ErrRemote, err)
	}

	cl := &regionClients{engines: engines, execution: execution}
	c.regions[region] = cl
	return cl, nil
}

// stage writes the framework requirements to the staging bucket and
// returns their gs:// URI, or "" when staging is not configured.
func (c *Client) stage(ctx context.Context, payload map[string]any) (string, error) {
	if c.staging == nil || c.cfg.StagingBucket == "" {
		return "", nil
	}

	fw := reconcile.Framework(stringValue(payload, "framework"))
	key := fmt.Sprintf("engines/%s-%s/requirements.txt", slug(stringValue(payload, "displayName")), uuid.NewString()[:8])

	if err := c.staging.Store(ctx, key, RequirementsFile(fw)); err != nil {
		return "", fmt.Errorf("%w: stage requirements: %v", ErrRemote, err)
	}

	c.logger.Debug("requirements staged", "bucket", c.cfg.StagingBucket, "key", key, "framework", fw)
	return fmt.Sprintf("gs://%s/%s", c.cfg.StagingBucket, key), nil
}

func (c *Client) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *Client) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("engine call failed", "error", err)
	return err
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "agent"
	}
	return out
}
