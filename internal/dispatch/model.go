package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/vertex-agent/pkg/retry"
	"google.golang.org/genai"
)

// Target identifies the project and region a model call is billed to.
type Target struct {
	Project string
	Region  string
}

// Request is a single generation call.
type Request struct {
	Target   Target
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Model generates content. The production implementation calls Vertex AI;
// tests substitute a scripted fake.
type Model interface {
	Generate(ctx context.Context, req Request) (*genai.GenerateContentResponse, error)
}

// VertexModel calls Gemini through the Vertex AI backend. Clients are
// cached per target and safe for concurrent use.
type VertexModel struct {
	mu      sync.Mutex
	clients map[Target]*genai.Client
	timeout time.Duration
	retry   retry.Config
	logger  *slog.Logger
}

func NewVertexModel(timeout time.Duration, retryCfg retry.Config, logger *slog.Logger) *VertexModel {
	return &VertexModel{
		clients: make(map[Target]*genai.Client),
		timeout: timeout,
		retry:   retryCfg,
		logger:  logger.With("system", "model"),
	}
}

func (m *VertexModel) Generate(ctx context.Context, req Request) (*genai.GenerateContentResponse, error) {
	client, err := m.client(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := retry.DoValue(ctx, m.retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		callCtx := ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		resp, err := client.Models.GenerateContent(callCtx, req.Model, req.Contents, req.Config)
		return resp, classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModel, err)
	}

	m.logger.Debug("generate content",
		"model", req.Model,
		"project", req.Target.Project,
		"region", req.Target.Region,
		"duration", time.Since(start),
	)
	return resp, nil
}

func (m *VertexModel) client(ctx context.Context, target Target) (*genai.Client, error) {
	if target.Project == "" {
		return nil, fmt.Errorf("%w: project is required for model calls", ErrModel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[target]; ok {
		return c, nil
	}

	c, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		Project:  target.Project,
		Location: target.Region,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create client: %v", ErrModel, err)
	}

	m.clients[target] = c
	return c, nil
}

// classify exposes the HTTP status of genai API errors to the retry policy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
