// Package cloudrun deploys agents as Cloud Run services running the agent
// runner image. The runner reads its configuration from the AGENT_CONFIG
// environment variable and answers POST / with {"query": "..."}.
package cloudrun

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/retry"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v2"
)

const maxResponseBytes = 4 << 20

var ErrRemote = errors.New("cloud run error")

// Target identifies the project and region a service is deployed to.
type Target struct {
	Project string
	Region  string
}

// Service is a deployed runner.
type Service struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Config describes the runner container.
type Config struct {
	Image          string
	ServiceAccount string // fmt pattern receiving the project id
	CPU            string
	Memory         string
	Timeout        time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Retry          retry.Config
}

// Deployer creates, removes and calls runner services.
type Deployer interface {
	Deploy(ctx context.Context, target Target, payload map[string]any) (*Service, error)
	Delete(ctx context.Context, name string) error
	Invoke(ctx context.Context, endpoint, query string) (*dispatch.Response, error)
}

// ServiceID derives a stable service id from the agent's display name.
func ServiceID(displayName string) string {
	if displayName == "" {
		displayName = "unnamed-agent"
	}
	sum := md5.Sum([]byte(displayName))
	return "agent-" + hex.EncodeToString(sum[:])[:8]
}

// RunnerConfig renders the flat configuration the runner expects.
func RunnerConfig(cfg *reconcile.AgentConfig) map[string]any {
	return map[string]any{
		"displayName":       cfg.DisplayName,
		"modelId":           cfg.ModelID,
		"temperature":       cfg.Generation.Temperature,
		"maxOutputTokens":   cfg.Generation.MaxOutputTokens,
		"systemInstruction": cfg.SystemInstruction,
		"framework":         string(cfg.Framework),
	}
}

// BuildService assembles the service resource for payload.
func BuildService(cfg Config, target Target, payload map[string]any) (*run.GoogleCloudRunV2Service, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode agent config: %w", err)
	}

	container := &run.GoogleCloudRunV2Container{
		Image: cfg.Image,
		Env: []*run.GoogleCloudRunV2EnvVar{
			{Name: "AGENT_CONFIG", Value: base64.StdEncoding.EncodeToString(raw)},
			{Name: "GOOGLE_PROJECT", Value: target.Project},
			{Name: "GOOGLE_REGION", Value: target.Region},
		},
		Resources: &run.GoogleCloudRunV2ResourceRequirements{
			Limits: map[string]string{"cpu": cfg.CPU, "memory": cfg.Memory},
		},
	}

	tmpl := &run.GoogleCloudRunV2RevisionTemplate{
		Containers: []*run.GoogleCloudRunV2Container{container},
	}
	if cfg.Timeout > 0 {
		tmpl.Timeout = fmt.Sprintf("%ds", int(cfg.Timeout.Seconds()))
	}
	if cfg.ServiceAccount != "" {
		tmpl.ServiceAccount = fmt.Sprintf(cfg.ServiceAccount, target.Project)
	}

	name, _ := payload["displayName"].(string)
	return &run.GoogleCloudRunV2Service{
		Description: name,
		Labels:      map[string]string{"managed-by": "vertex-agent"},
		Template:    tmpl,
	}, nil
}

// Client implements Deployer over the Cloud Run Admin API v2.
type Client struct {
	cfg    Config
	svc    *run.Service
	opts   []option.ClientOption
	logger *slog.Logger

	mu      sync.Mutex
	invoker *http.Client
	callers map[string]*http.Client
}

func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := run.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %v", ErrRemote, err)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Client{
		cfg:     cfg,
		svc:     svc,
		opts:    opts,
		logger:  logger.With("system", "cloudrun"),
		callers: make(map[string]*http.Client),
	}, nil
}

// WithHTTPClient makes Invoke use hc instead of an ID-token client per
// endpoint. Runners that allow unauthenticated calls need no token.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.invoker = hc
	return c
}

// Deploy creates the runner service and waits until it is serving.
func (c *Client) Deploy(ctx context.Context, target Target, payload map[string]any) (*Service, error) {
	name, _ := payload["displayName"].(string)
	id := ServiceID(name)
	parent := fmt.Sprintf("projects/%s/locations/%s", target.Project, target.Region)

	resource, err := BuildService(c.cfg, target, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}

	op, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*run.GoogleLongrunningOperation, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return c.svc.Projects.Locations.Services.Create(parent, resource).ServiceId(id).Context(callCtx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create service %s: %v", ErrRemote, id, err)
	}

	op, err = c.wait(ctx, op)
	if err != nil {
		return nil, err
	}

	var created run.GoogleCloudRunV2Service
	if len(op.Response) > 0 {
		if err := json.Unmarshal(op.Response, &created); err != nil {
			return nil, fmt.Errorf("%w: decode service: %v", ErrRemote, err)
		}
	}
	if created.Name == "" {
		created.Name = parent + "/services/" + id
	}

	c.logger.Info("service deployed", "name", created.Name, "uri", created.Uri)
	return &Service{Name: created.Name, URI: created.Uri}, nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	op, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*run.GoogleLongrunningOperation, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()
		return c.svc.Projects.Locations.Services.Delete(name).Context(callCtx).Do()
	})
	if err != nil {
		return fmt.Errorf("%w: delete service %s: %v", ErrRemote, name, err)
	}

	if _, err := c.wait(ctx, op); err != nil {
		return err
	}

	c.logger.Info("service deleted", "name", name)
	return nil
}

// Invoke posts {"query": query} to a runner and normalizes its answer.
// Transient HTTP failures are retried; everything else wraps ErrRemote.
func (c *Client) Invoke(ctx context.Context, endpoint, query string) (*dispatch.Response, error) {
	hc, err := c.caller(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: token client for %s: %v", ErrRemote, endpoint, err)
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrRemote, err)
	}

	out, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (any, error) {
		callCtx, cancel := c.timeout(ctx)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			return nil, &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}

		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return string(data), nil
		}
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %v", ErrRemote, endpoint, err)
	}

	result, err := dispatch.Normalize(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	return result, nil
}

func (c *Client) caller(ctx context.Context, endpoint string) (*http.Client, error) {
	if c.invoker != nil {
		return c.invoker, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if hc, ok := c.callers[endpoint]; ok {
		return hc, nil
	}
	hc, err := idtoken.NewClient(context.WithoutCancel(ctx), endpoint, c.opts...)
	if err != nil {
		return nil, err
	}
	c.callers[endpoint] = hc
	return hc, nil
}

// wait polls op until it completes or ctx ends.
func (c *Client) wait(ctx context.Context, op *run.GoogleLongrunningOperation) (*run.GoogleLongrunningOperation, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: wait for %s: %v", ErrRemote, op.Name, ctx.Err())
		case <-ticker.C:
		}

		next, err := retry.DoValue(ctx, c.cfg.Retry, func(ctx context.Context) (*run.GoogleLongrunningOperation, error) {
			callCtx, cancel := c.timeout(ctx)
			defer cancel()
			return c.svc.Projects.Locations.Operations.Get(op.Name).Context(callCtx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("%w: poll %s: %v", ErrRemote, op.Name, err)
		}
		op = next
	}

	if op.Error != nil {
		return nil, fmt.Errorf("%w: operation %s failed: %s", ErrRemote, op.Name, op.Error.Message)
	}
	return op, nil
}

func (c *Client) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}
