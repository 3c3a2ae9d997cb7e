package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"google.golang.org/genai"
)

// MaxTurns bounds the model/tool loop of tool-using executors.
const MaxTurns = 10

// Call carries everything an executor needs for one run.
type Call struct {
	Config *reconcile.AgentConfig
	Target Target
	Query  string
	Tools  *ToolSet
}

// conversation accumulates the turn history of a tool-using run.
type conversation struct {
	model    Model
	call     Call
	contents []*genai.Content
	pending  []*genai.FunctionCall
	actions  []Action
	text     string
	turns    int
}

func newConversation(model Model, call Call) *conversation {
	return &conversation{
		model:    model,
		call:     call,
		contents: []*genai.Content{genai.NewContentFromText(call.Query, genai.RoleUser)},
	}
}

// step performs one model turn and records any pending function calls.
func (c *conversation) step(ctx context.Context) error {
	c.turns++

	resp, err := c.model.Generate(ctx, Request{
		Target:   c.call.Target,
		Model:    c.call.Config.ModelID,
		Contents: c.contents,
		Config:   generateConfig(c.call.Config, c.call.Tools, true),
	})
	if err != nil {
		return err
	}

	if content := firstContent(resp); content != nil {
		c.contents = append(c.contents, content)
	}

	c.pending = resp.FunctionCalls()
	c.text = resp.Text()
	return nil
}

// invokePending runs every pending call and appends their responses as
// a single user turn.
func (c *conversation) invokePending(ctx context.Context) {
	parts := make([]*genai.Part, 0, len(c.pending))
	for _, fc := range c.pending {
		out := c.call.Tools.Invoke(ctx, fc.Name, fc.Args)
		c.actions = append(c.actions, Action{Name: fc.Name, Input: fc.Args, Output: out})

		part := genai.NewPartFromFunctionResponse(fc.Name, map[string]any{"output": out})
		part.FunctionResponse.ID = fc.ID
		parts = append(parts, part)
	}
	c.contents = append(c.contents, genai.NewContentFromParts(parts, genai.RoleUser))
	c.pending = nil
}

func (c *conversation) exhausted() error {
	return fmt.Errorf("%w: no final answer after %d model turns", ErrExecution, c.turns)
}

func (c *conversation) response() *Response {
	return NewResponse(c.text, c.actions)
}

func firstContent(resp *genai.GenerateContentResponse) *genai.Content {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0].Content
}

// generateConfig maps the agent's generation settings onto a request.
func generateConfig(cfg *reconcile.AgentConfig, tools *ToolSet, functions bool) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(cfg.Generation.Temperature)),
		MaxOutputTokens: int32(cfg.Generation.MaxOutputTokens),
	}
	if cfg.Generation.TopP != nil {
		gc.TopP = genai.Ptr(float32(*cfg.Generation.TopP))
	}
	if cfg.Generation.TopK != nil {
		gc.TopK = genai.Ptr(float32(*cfg.Generation.TopK))
	}
	if si := strings.TrimSpace(cfg.SystemInstruction); si != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(si)}}
	}
	if tools != nil {
		gc.Tools = tools.Declarations(functions)
	}
	return gc
}
