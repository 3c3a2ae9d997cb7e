package deployments_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JaimeStill/vertex-agent/internal/deployments"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    deployments.Type
		wantErr bool
	}{
		{"", deployments.TypeAgentEngine, false},
		{"AGENT_ENGINE", deployments.TypeAgentEngine, false},
		{"cloud_run", deployments.TypeCloudRun, false},
		{" Cloud_Run ", deployments.TypeCloudRun, false},
		{"GKE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := deployments.ParseType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, deployments.ErrInvalidType) {
				t.Errorf("ParseType(%q) error = %v, want ErrInvalidType", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{deployments.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("activate: %w", deployments.ErrDuplicate), http.StatusConflict},
		{deployments.ErrInvalidType, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := deployments.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
