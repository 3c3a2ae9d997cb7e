package sandbox_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/sandbox"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/google/go-cmp/cmp"
)

// TestMain lets the test binary serve as the isolation worker.
func TestMain(m *testing.M) {
	if sandbox.IsWorker() {
		os.Exit(sandbox.ServeWorker())
	}
	os.Exit(m.Run())
}

func newSandbox() *sandbox.Sandbox {
	return sandbox.New(2*time.Second, 1_000_000, logging.Discard())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    sandbox.FunctionInfo
		wantErr bool
	}{
		{
			name: "single function",
			code: heredoc.Doc(`
				def add(a, b):
				    return a + b
			`),
			want: sandbox.FunctionInfo{Name: "add", Params: []string{"a", "b"}},
		},
		{
			name: "private helpers allowed",
			code: heredoc.Doc(`
				def _square(x):
				    return x * x

				def area(side, unit = "m"):
				    return str(_square(side)) + unit
			`),
			want: sandbox.FunctionInfo{Name: "area", Params: []string{"side", "unit"}},
		},
		{
			name: "varargs excluded from params",
			code: heredoc.Doc(`
				def total(first, *rest, **opts):
				    return first + sum(rest)
			`),
			want: sandbox.FunctionInfo{Name: "total", Params: []string{"first"}},
		},
		{name: "no function", code: "x = 1", wantErr: true},
		{name: "empty", code: "   ", wantErr: true},
		{name: "syntax error", code: "def broken(:\n    pass", wantErr: true},
		{
			name: "multiple public functions",
			code: heredoc.Doc(`
				def one():
				    return 1

				def two():
				    return 2
			`),
			wantErr: true,
		},
		{
			name: "disallowed builtin",
			code: heredoc.Doc(`
				def shout(msg):
				    print(msg)
				    return msg
			`),
			wantErr: true,
		},
		{
			name: "getattr not allowed",
			code: heredoc.Doc(`
				def peek(obj):
				    return getattr(obj, "secret")
			`),
			wantErr: true,
		},
		{
			name: "top level failure",
			code: heredoc.Doc(`
				x = 1 // 0

				def f():
				    return x
			`),
			wantErr: true,
		},
	}

	sb := newSandbox()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sb.Validate(context.Background(), tt.code)
			if tt.wantErr {
				if !errors.Is(err, sandbox.ErrInvalidCode) {
					t.Fatalf("Validate() error = %v, want ErrInvalidCode", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun(t *testing.T) {
	add := heredoc.Doc(`
		def add(a, b):
		    return a + b
	`)

	tests := []struct {
		name   string
		code   string
		params map[string]any
		want   string
	}{
		{"json numbers", add, map[string]any{"a": 2.0, "b": 3.0, "extra": "ignored"}, "5"},
		{"strings unquoted", add, map[string]any{"a": "foo", "b": "bar"}, "foobar"},
		{"floats kept", add, map[string]any{"a": 1.5, "b": 1.0}, "2.5"},
		{
			"list result",
			heredoc.Doc(`
				def evens(values):
				    return sorted(filter(lambda v: v % 2 == 0, values))
			`),
			map[string]any{"values": []any{4.0, 1.0, 2.0}},
			"[2, 4]",
		},
		{
			"dict param",
			heredoc.Doc(`
				def lookup(table, key):
				    return table.get(key, "missing")
			`),
			map[string]any{"table": map[string]any{"a": "alpha"}, "key": "a"},
			"alpha",
		},
		{
			"none result",
			heredoc.Doc(`
				def nothing():
				    pass
			`),
			nil,
			"None",
		},
	}

	sb := newSandbox()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sb.Run(context.Background(), tt.code, tt.params); got != tt.want {
				t.Errorf("Run() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		params   map[string]any
		contains string
	}{
		{
			name: "division by zero",
			code: heredoc.Doc(`
				def boom():
				    return 1 / 0
			`),
			contains: "division by zero",
		},
		{
			name: "missing argument",
			code: heredoc.Doc(`
				def greet(name):
				    return "hi " + name
			`),
			params:   map[string]any{},
			contains: "missing 1 argument",
		},
		{
			name:     "invalid code",
			code:     "x = 1",
			contains: "no public function",
		},
		{
			name: "unsupported param",
			code: heredoc.Doc(`
				def echo(v):
				    return v
			`),
			params:   map[string]any{"v": struct{}{}},
			contains: "parameter v",
		},
	}

	sb := newSandbox()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sb.Run(context.Background(), tt.code, tt.params)
			if !strings.HasPrefix(got, "Error executing tool: ") {
				t.Fatalf("Run() = %q, want error prefix", got)
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Run() = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	sb := sandbox.New(50*time.Millisecond, 0, logging.Discard())
	code := heredoc.Doc(`
		def spin():
		    n = 0
		    while True:
		        n += 1
		    return n
	`)

	start := time.Now()
	got := sb.Run(context.Background(), code, nil)
	if !strings.Contains(got, "cancelled: timeout") {
		t.Errorf("Run() = %q, want timeout", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Run() took %s, want prompt cancellation", elapsed)
	}
}

func TestRun_StepLimit(t *testing.T) {
	sb := sandbox.New(5*time.Second, 1000, logging.Discard())
	code := heredoc.Doc(`
		def churn():
		    total = 0
		    for i in range(1000000):
		        total += i
		    return total
	`)

	if got := sb.Run(context.Background(), code, nil); !strings.Contains(got, "too many steps") {
		t.Errorf("Run() = %q, want step limit error", got)
	}
}

func TestRun_FreshNamespace(t *testing.T) {
	sb := newSandbox()
	code := heredoc.Doc(`
		seen = {}

		def visit(key):
		    counts = dict(seen)
		    counts[key] = counts.get(key, 0) + 1
		    return counts[key]
	`)

	for i := range 3 {
		if got := sb.Run(context.Background(), code, map[string]any{"key": "k"}); got != "1" {
			t.Errorf("Run() call %d = %q, want %q", i, got, "1")
		}
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2 + 3 * 4", "14"},
		{"sum([1, 2, 3])", "6"},
		{"sum([0.5, 1.5])", "2.0"},
		{"sum([1, 2], 10)", "13"},
		{"round(2.5)", "2"},
		{"round(3.5)", "4"},
		{"round(3.14159, 2)", "3.14"},
		{"abs(-4)", "4"},
		{"map(lambda x: x * 2, [1, 2])", "[2, 4]"},
		{"map(lambda a, b: a + b, [1, 2], [10, 20, 30])", "[11, 22]"},
		{"filter(None, [0, 1, 2])", "[1, 2]"},
		{"isinstance('a', str)", "True"},
		{"isinstance(1, (float, int))", "True"},
		{"isinstance(True, int)", "True"},
		{"isinstance([], dict)", "False"},
		{"sorted(set([3, 1, 3]))", "[1, 3]"},
		{"max(zip([1, 2], [3, 4]))", "(2, 4)"},
	}

	sb := newSandbox()
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := sb.Eval(context.Background(), tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Rejected(t *testing.T) {
	sb := newSandbox()

	for _, expr := range []string{"getattr(1, 'x')", "print(1)", "type(1)", "2 +"} {
		if _, err := sb.Eval(context.Background(), expr); !errors.Is(err, sandbox.ErrInvalidCode) {
			t.Errorf("Eval(%q) error = %v, want ErrInvalidCode", expr, err)
		}
	}

	if _, err := sb.Eval(context.Background(), "1 // 0"); err == nil {
		t.Error("Eval(1 // 0) error = nil, want runtime error")
	}
}

func TestIsolated_MatchesInline(t *testing.T) {
	inline := newSandbox()
	isolated := sandbox.New(5*time.Second, 1_000_000, logging.Discard(), sandbox.WithIsolation(256<<20))
	ctx := context.Background()

	code := heredoc.Doc(`
		def word_count(text):
		    return len(text.split())
	`)

	info, err := isolated.Validate(ctx, code)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want, _ := inline.Validate(ctx, code)
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("Validate() mismatch (-inline +isolated):\n%s", diff)
	}

	params := map[string]any{"text": "one two three"}
	if got, want := isolated.Run(ctx, code, params), inline.Run(ctx, code, params); got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}

	if got, err := isolated.Eval(ctx, "round(3.14159, 2)"); err != nil || got != "3.14" {
		t.Errorf("Eval() = %q, %v, want 3.14", got, err)
	}

	if _, err := isolated.Validate(ctx, "x = 1"); !errors.Is(err, sandbox.ErrInvalidCode) {
		t.Errorf("Validate() error = %v, want ErrInvalidCode", err)
	}
	if _, err := isolated.Eval(ctx, "print(1)"); !errors.Is(err, sandbox.ErrInvalidCode) {
		t.Errorf("Eval() error = %v, want ErrInvalidCode", err)
	}
}

func TestIsolated_MemoryLimit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("address space limits are applied on linux only")
	}

	sb := sandbox.New(5*time.Second, 1000, logging.Discard(), sandbox.WithIsolation(64<<20))
	tests := []struct {
		name string
		code string
	}{
		{
			name: "string repeat",
			code: heredoc.Doc(`
				def blow():
				    return len("x" * 800000000)
			`),
		},
		{
			name: "materialized range",
			code: heredoc.Doc(`
				def blow():
				    return len(sorted(list(range(20000000))))
			`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sb.Run(context.Background(), tt.code, nil)
			if got != "Error executing tool: memory limit exceeded" {
				t.Errorf("Run() = %q, want memory limit error", got)
			}
		})
	}
}

func TestIsolated_Timeout(t *testing.T) {
	sb := sandbox.New(100*time.Millisecond, 0, logging.Discard(), sandbox.WithIsolation(256<<20))
	code := heredoc.Doc(`
		def spin():
		    while True:
		        pass
	`)

	if got := sb.Run(context.Background(), code, nil); !strings.Contains(got, "cancelled: timeout") {
		t.Errorf("Run() = %q, want timeout", got)
	}
}
