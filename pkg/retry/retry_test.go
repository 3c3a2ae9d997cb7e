package retry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/JaimeStill/vertex-agent/pkg/retry"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"grpc internal", status.Error(codes.Internal, "oops"), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad"), false},
		{"grpc not found", status.Error(codes.NotFound, "missing"), false},
		{"http 503", &retry.StatusError{Code: http.StatusServiceUnavailable}, true},
		{"http 429", &retry.StatusError{Code: http.StatusTooManyRequests}, true},
		{"http 400", &retry.StatusError{Code: http.StatusBadRequest}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return status.Error(codes.Unavailable, "down")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_PermanentNotRetried(t *testing.T) {
	calls := 0
	perm := status.Error(codes.InvalidArgument, "bad payload")

	err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		return perm
	})

	if !errors.Is(err, perm) {
		t.Errorf("Do() error = %v, want %v", err, perm)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(2), func(ctx context.Context) error {
		calls++
		return &retry.StatusError{Code: http.StatusBadGateway}
	})

	if err == nil {
		t.Fatal("Do() error = nil, want error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoValue(t *testing.T) {
	got, err := retry.DoValue(context.Background(), fastConfig(1), func(ctx context.Context) (string, error) {
		return "engine-1", nil
	})
	if err != nil || got != "engine-1" {
		t.Errorf("DoValue() = %q, %v, want engine-1, nil", got, err)
	}
}
