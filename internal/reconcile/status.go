package reconcile

import "strings"

// Framework selects the execution strategy for an agent.
type Framework string

const (
	FrameworkCustom     Framework = "CUSTOM"
	FrameworkLangChain  Framework = "LANGCHAIN"
	FrameworkLangGraph  Framework = "LANGGRAPH"
	FrameworkCrewAI     Framework = "CREWAI"
	FrameworkLlamaIndex Framework = "LLAMAINDEX"
)

var frameworks = []Framework{
	FrameworkCustom,
	FrameworkLangChain,
	FrameworkLangGraph,
	FrameworkCrewAI,
	FrameworkLlamaIndex,
}

// ParseFramework accepts any casing. The empty string selects CUSTOM.
func ParseFramework(s string) (Framework, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return FrameworkCustom, nil
	}
	for _, f := range frameworks {
		if string(f) == s {
			return f, nil
		}
	}
	return "", validationf("unknown framework %q", s)
}

// Status is the agent lifecycle state.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusTested   Status = "TESTED"
	StatusDeployed Status = "DEPLOYED"
	StatusDeleted  Status = "DELETED"
)

func (s Status) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusTested:
		return 1
	case StatusDeployed:
		return 2
	case StatusDeleted:
		return 3
	default:
		return -1
	}
}

func (s Status) Validate() error {
	if s.rank() < 0 {
		return validationf("invalid status %q", s)
	}
	return nil
}

// CanTransition reports whether moving from s to next respects the monotonic
// DRAFT → TESTED → DEPLOYED → DELETED order. Staying in place is allowed,
// except that DELETED is terminal.
func (s Status) CanTransition(next Status) bool {
	if s == StatusDeleted || next.rank() < 0 || s.rank() < 0 {
		return false
	}
	return next.rank() >= s.rank()
}

// Advance returns next when the transition is allowed and s otherwise.
// A DEPLOYED agent that passes a test stays DEPLOYED.
func (s Status) Advance(next Status) Status {
	if s.CanTransition(next) {
		return next
	}
	return s
}
