package dispatch

import (
	"context"
	"fmt"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
)

// Executor runs one query for a single framework.
type Executor interface {
	Execute(ctx context.Context, call Call) (*Response, error)
}

// customExecutor makes exactly one generation call. Only grounding tools
// are offered to the model; callables need a tool loop.
type customExecutor struct {
	model Model
}

func (e *customExecutor) Execute(ctx context.Context, call Call) (*Response, error) {
	conv := newConversation(e.model, call)

	resp, err := e.model.Generate(ctx, Request{
		Target:   call.Target,
		Model:    call.Config.ModelID,
		Contents: conv.contents,
		Config:   generateConfig(call.Config, call.Tools, false),
	})
	if err != nil {
		return nil, err
	}

	return NewResponse(resp.Text(), nil), nil
}

// toolLoopExecutor alternates model turns and tool invocations until the
// model answers without requesting a tool.
type toolLoopExecutor struct {
	model    Model
	maxTurns int
}

func (e *toolLoopExecutor) Execute(ctx context.Context, call Call) (*Response, error) {
	conv := newConversation(e.model, call)

	for conv.turns < e.maxTurns {
		if err := conv.step(ctx); err != nil {
			return nil, err
		}
		if len(conv.pending) == 0 {
			return conv.response(), nil
		}
		conv.invokePending(ctx)
	}

	return nil, conv.exhausted()
}

// unsupportedExecutor records that a framework has no execution path.
type unsupportedExecutor struct {
	framework reconcile.Framework
}

func (e unsupportedExecutor) Execute(context.Context, Call) (*Response, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFramework, e.framework)
}
