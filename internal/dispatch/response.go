// Package dispatch turns an agent configuration and a user query into a
// normalized response by selecting the executor for the agent's framework.
// Tools are resolved per call into an explicit ToolSet; nothing is cached
// between runs except model clients.
package dispatch

import "fmt"

// Action records one tool invocation made while answering a query.
type Action struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output"`
}

type Message struct {
	Content string `json:"content"`
}

// Response is the framework-independent result of a run.
type Response struct {
	TextResponse string    `json:"textResponse"`
	Actions      []Action  `json:"actions"`
	Messages     []Message `json:"messages"`
}

// NewResponse wraps text as a response with a single message.
func NewResponse(text string, actions []Action) *Response {
	if actions == nil {
		actions = []Action{}
	}
	return &Response{
		TextResponse: text,
		Actions:      actions,
		Messages:     []Message{{Content: text}},
	}
}

// ErrorResponse renders a failed run the way test callers expect to see it.
func ErrorResponse(err error) *Response {
	return NewResponse("Error: "+err.Error(), nil)
}

// Normalize maps the output of a deployed agent onto a Response. Deployed
// agents report text under textResponse, output or response, and a failure
// under error.
func Normalize(v any) (*Response, error) {
	switch x := v.(type) {
	case nil:
		return NewResponse("", nil), nil
	case string:
		return NewResponse(x, nil), nil
	case map[string]any:
		return normalizeMap(x)
	default:
		return NewResponse(fmt.Sprint(x), nil), nil
	}
}

func normalizeMap(m map[string]any) (*Response, error) {
	if msg, ok := m["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrExecution, msg)
	}

	var text string
	for _, key := range []string{"textResponse", "output", "response"} {
		switch v := m[key].(type) {
		case string:
			text = v
		case map[string]any:
			return normalizeMap(v)
		default:
			continue
		}
		break
	}

	var actions []Action
	if raw, ok := m["actions"].([]any); ok {
		for _, item := range raw {
			actions = append(actions, toAction(item))
		}
	}

	resp := NewResponse(text, actions)

	if raw, ok := m["messages"].([]any); ok && len(raw) > 0 {
		resp.Messages = make([]Message, 0, len(raw))
		for _, item := range raw {
			switch msg := item.(type) {
			case map[string]any:
				content, _ := msg["content"].(string)
				resp.Messages = append(resp.Messages, Message{Content: content})
			case string:
				resp.Messages = append(resp.Messages, Message{Content: msg})
			}
		}
	}

	return resp, nil
}

func toAction(item any) Action {
	m, ok := item.(map[string]any)
	if !ok {
		return Action{Output: fmt.Sprint(item)}
	}

	a := Action{}
	a.Name, _ = m["name"].(string)
	if a.Name == "" {
		a.Name, _ = m["tool"].(string)
	}
	a.Input, _ = m["input"].(map[string]any)

	switch out := m["output"].(type) {
	case nil:
	case string:
		a.Output = out
	default:
		a.Output = fmt.Sprint(out)
	}
	return a
}
