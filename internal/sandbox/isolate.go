package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"strings"
	"time"

	"github.com/JaimeStill/vertex-agent/pkg/logging"
)

// EnvWorker is set on processes started to serve one isolated request.
const EnvWorker = "VERTEX_AGENT_SANDBOX_WORKER"

// workerGrace covers process start-up on top of the interpreter timeout.
const workerGrace = 2 * time.Second

const (
	opValidate = "validate"
	opRun      = "run"
	opEval     = "eval"
)

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithIsolation runs every request in a child process whose address space
// may grow by at most memoryLimit bytes. The child is the current
// executable; its main must call ServeWorker when IsWorker reports true.
func WithIsolation(memoryLimit int64) Option {
	return func(s *Sandbox) {
		s.isolation = &isolation{memoryLimit: memoryLimit}
	}
}

// WithWorkerExecutable overrides the binary started for isolated requests.
func WithWorkerExecutable(path string) Option {
	return func(s *Sandbox) {
		if s.isolation != nil {
			s.isolation.executable = path
		}
	}
}

type isolation struct {
	memoryLimit int64
	executable  string
}

type request struct {
	Op          string         `json:"op"`
	Code        string         `json:"code"`
	Params      map[string]any `json:"params,omitempty"`
	Timeout     time.Duration  `json:"timeout"`
	MaxSteps    uint64         `json:"max_steps"`
	MemoryLimit int64          `json:"memory_limit"`
}

type response struct {
	Result  string       `json:"result,omitempty"`
	Info    FunctionInfo `json:"info"`
	Error   string       `json:"error,omitempty"`
	Invalid bool         `json:"invalid,omitempty"`
}

// IsWorker reports whether this process was started to serve a sandbox
// request.
func IsWorker() bool {
	return os.Getenv(EnvWorker) == "1"
}

// ServeWorker reads one request from stdin, applies the memory limit,
// evaluates the request in-process and writes the response to stdout.
// It returns the process exit code.
func ServeWorker() int {
	return serveWorker(os.Stdin, os.Stdout, os.Stderr)
}

func serveWorker(in io.Reader, out, errOut io.Writer) int {
	dec := json.NewDecoder(in)
	dec.UseNumber()

	var req request
	if err := dec.Decode(&req); err != nil {
		fmt.Fprintln(errOut, "decode request:", err)
		return 2
	}

	if req.MemoryLimit > 0 {
		debug.SetMemoryLimit(req.MemoryLimit)
		if err := limitAddressSpace(req.MemoryLimit); err != nil {
			fmt.Fprintln(errOut, "limit memory:", err)
			return 2
		}
	}

	sb := New(req.Timeout, req.MaxSteps, logging.Discard())
	resp := sb.serve(context.Background(), req)

	if err := json.NewEncoder(out).Encode(resp); err != nil {
		fmt.Fprintln(errOut, "encode response:", err)
		return 2
	}
	return 0
}

func (s *Sandbox) serve(ctx context.Context, req request) response {
	switch req.Op {
	case opValidate:
		info, err := s.validate(ctx, req.Code)
		if err != nil {
			return response{Error: trimInvalid(err), Invalid: true}
		}
		return response{Info: info}
	case opRun:
		return response{Result: s.run(ctx, req.Code, req.Params)}
	case opEval:
		v, err := s.eval(ctx, req.Code)
		if err != nil {
			return response{Error: trimInvalid(err), Invalid: errors.Is(err, ErrInvalidCode)}
		}
		return response{Result: v}
	default:
		return response{Error: fmt.Sprintf("unknown operation %q", req.Op)}
	}
}

func trimInvalid(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidCode.Error()+": ")
}

// isolated runs req in a worker process. The returned error describes a
// worker that did not answer: it timed out, exceeded its memory or could
// not be started.
func (s *Sandbox) isolated(ctx context.Context, req request) (response, error) {
	req.Timeout = s.timeout
	req.MaxSteps = s.maxSteps
	req.MemoryLimit = s.isolation.memoryLimit

	body, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("encode request: %w", err)
	}

	exe := s.isolation.executable
	if exe == "" {
		if exe, err = os.Executable(); err != nil {
			return response{}, fmt.Errorf("locate worker: %w", err)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout+workerGrace)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = append(os.Environ(), EnvWorker+"=1")
	cmd.Stdin = bytes.NewReader(body)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		s.logger.Warn("sandbox worker failed", "op", req.Op, "error", err, "stderr", lastLine(detail))

		switch {
		case ctx.Err() != nil:
			return response{}, errors.New("cancelled: timeout")
		case strings.Contains(detail, "out of memory"):
			return response{}, errors.New("memory limit exceeded")
		default:
			return response{}, fmt.Errorf("worker failed: %v", err)
		}
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return response{}, fmt.Errorf("decode worker response: %w", err)
	}
	return resp, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
