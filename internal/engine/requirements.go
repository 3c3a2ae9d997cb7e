package engine

import (
	"strings"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
)

var commonRequirements = []string{
	"google-cloud-aiplatform[agent_engines]>=1.36.4",
	"pydantic>=2.10",
	"requests",
}

var frameworkRequirements = map[reconcile.Framework][]string{
	reconcile.FrameworkLangChain:  {"langchain>=0.0.267", "langchain_google_vertexai"},
	reconcile.FrameworkLangGraph:  {"langgraph", "cloudpickle==3.0.0"},
	reconcile.FrameworkLlamaIndex: {"llama-index", "llama-index-llms-google"},
	reconcile.FrameworkCrewAI:     {"crew-ai[tools]", "cloudpickle==3.0.0"},
}

// Requirements lists the Python packages an engine running fw installs.
func Requirements(fw reconcile.Framework) []string {
	out := append([]string{}, commonRequirements...)
	return append(out, frameworkRequirements[fw]...)
}

// RequirementsFile renders Requirements as a requirements.txt body.
func RequirementsFile(fw reconcile.Framework) []byte {
	return []byte(strings.Join(Requirements(fw), "\n") + "\n")
}
