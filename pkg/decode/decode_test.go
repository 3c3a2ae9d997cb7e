package decode_test

import (
	"testing"

	"github.com/JaimeStill/vertex-agent/pkg/decode"
	"github.com/google/go-cmp/cmp"
)

type crewAgent struct {
	Role      string `json:"role"`
	Goal      string `json:"goal"`
	Backstory string `json:"backstory"`
}

func TestFromMap(t *testing.T) {
	got, err := decode.FromMap[crewAgent](map[string]any{
		"role":    "researcher",
		"goal":    "find facts",
		"ignored": 42,
	})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}

	want := crewAgent{Role: "researcher", Goal: "find facts"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromMap() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromMap_TypeMismatch(t *testing.T) {
	if _, err := decode.FromMap[crewAgent](map[string]any{"role": 1}); err == nil {
		t.Error("FromMap() error = nil, want error")
	}
}

func TestToMap(t *testing.T) {
	got, err := decode.ToMap(crewAgent{Role: "writer"})
	if err != nil {
		t.Fatalf("ToMap() error = %v", err)
	}
	if got["role"] != "writer" {
		t.Errorf("ToMap()[role] = %v, want writer", got["role"])
	}
}
