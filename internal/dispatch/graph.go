package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/observability"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/decode"
	"github.com/google/uuid"
)

const (
	nodeModel   = "model"
	nodeTools   = "tools"
	nodeRespond = "respond"

	keyRoute = "route"
	keyQuery = "query"
	keyTurn  = "turn"
	keyText  = "text"
)

// graphExecutor runs a model node and a tool node as a state graph. The
// model node routes to the tool node while a function call is pending and
// to the respond node otherwise.
type graphExecutor struct {
	model    Model
	maxTurns int
	logger   *slog.Logger
}

func (e *graphExecutor) Execute(ctx context.Context, call Call) (*Response, error) {
	conv := newConversation(e.model, call)
	runID := uuid.NewString()

	graphType := ""
	initial := state.New(nil)
	if lg, ok := call.Config.FrameworkConfig.(*reconcile.LangGraphConfig); ok {
		graphType = lg.GraphType
		for k, v := range lg.InitialState {
			initial = initial.Set(k, v)
		}
	}
	initial = initial.Set(keyQuery, call.Query)
	initial.RunID = runID

	cfg := config.DefaultGraphConfig("agent-" + call.Config.ID.String())
	cfg.Checkpoint.Interval = 1

	observer := &graphObserver{logger: e.logger.With("run", runID, "graph_type", graphType)}
	checkpoints := newMemoryCheckpoints()

	graph, err := state.NewGraphWithDeps(cfg, observer, checkpoints)
	if err != nil {
		return nil, fmt.Errorf("%w: build graph: %v", ErrExecution, err)
	}

	if err := e.build(graph, conv); err != nil {
		return nil, fmt.Errorf("%w: build graph: %v", ErrExecution, err)
	}

	final, err := graph.Execute(ctx, initial)
	checkpoints.Delete(runID)
	if err != nil {
		return nil, err
	}

	text, _ := final.Get(keyText)
	conv.text, _ = text.(string)
	return conv.response(), nil
}

func (e *graphExecutor) build(graph state.StateGraph, conv *conversation) error {
	model := state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		if err := conv.step(ctx); err != nil {
			return s, err
		}

		route := nodeRespond
		if len(conv.pending) > 0 {
			if conv.turns >= e.maxTurns {
				return s, conv.exhausted()
			}
			route = nodeTools
		}

		return s.Set(keyTurn, conv.turns).Set(keyRoute, route), nil
	})

	tools := state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		conv.invokePending(ctx)
		return s.Set("actions", len(conv.actions)), nil
	})

	respond := state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		return s.Set(keyText, conv.text), nil
	})

	if err := graph.AddNode(nodeModel, model); err != nil {
		return err
	}
	if err := graph.AddNode(nodeTools, tools); err != nil {
		return err
	}
	if err := graph.AddNode(nodeRespond, respond); err != nil {
		return err
	}

	if err := graph.AddEdge(nodeModel, nodeTools, state.KeyEquals(keyRoute, nodeTools)); err != nil {
		return err
	}
	if err := graph.AddEdge(nodeModel, nodeRespond, state.KeyEquals(keyRoute, nodeRespond)); err != nil {
		return err
	}
	if err := graph.AddEdge(nodeTools, nodeModel, nil); err != nil {
		return err
	}

	if err := graph.SetEntryPoint(nodeModel); err != nil {
		return err
	}
	return graph.SetExitPoint(nodeRespond)
}

type nodeEvent struct {
	Node      string `json:"node"`
	Iteration int    `json:"iteration"`
	From      string `json:"from"`
	To        string `json:"to"`
	Error     any    `json:"error"`
}

// graphObserver logs node and edge events of a graph run.
type graphObserver struct {
	logger *slog.Logger
}

func (o *graphObserver) OnEvent(ctx context.Context, event observability.Event) {
	data, err := decode.FromMap[nodeEvent](event.Data)
	if err != nil {
		o.logger.Debug("undecodable graph event", "type", event.Type, "error", err)
		return
	}

	switch event.Type {
	case observability.EventNodeStart:
		o.logger.Debug("node start", "node", data.Node, "iteration", data.Iteration)
	case observability.EventNodeComplete:
		if data.Error != nil {
			o.logger.Warn("node failed", "node", data.Node, "iteration", data.Iteration, "error", data.Error)
			return
		}
		o.logger.Debug("node complete", "node", data.Node, "iteration", data.Iteration)
	case observability.EventEdgeTransition:
		o.logger.Debug("edge transition", "from", data.From, "to", data.To)
	}
}

// memoryCheckpoints keeps checkpoints for the lifetime of one run.
type memoryCheckpoints struct {
	mu     sync.Mutex
	states map[string]state.State
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{states: make(map[string]state.State)}
}

func (m *memoryCheckpoints) Save(st state.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.RunID] = st
	return nil
}

func (m *memoryCheckpoints) Load(runID string) (state.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[runID]
	if !ok {
		return state.State{}, fmt.Errorf("checkpoint not found: %s", runID)
	}
	return st, nil
}

func (m *memoryCheckpoints) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, runID)
	return nil
}

func (m *memoryCheckpoints) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids, nil
}
