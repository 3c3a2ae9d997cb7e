package testruns_test

import (
	"testing"

	"github.com/JaimeStill/vertex-agent/internal/testruns"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, testruns.DefaultLimit},
		{-5, testruns.DefaultLimit},
		{7, 7},
		{testruns.MaxLimit, testruns.MaxLimit},
		{testruns.MaxLimit + 1, testruns.MaxLimit},
	}

	for _, tt := range tests {
		if got := testruns.ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
