// Package sandbox executes user-supplied tool functions in a restricted
// Starlark interpreter. Tool code may only reference the builtins named in
// Allowed; every call runs on a fresh thread with fresh globals so no state
// leaks between invocations.
//
// Steps and wall time are checked between interpreter steps only, so a
// single builtin (string repeat, list(range(n)), sorted) can allocate
// without bound. A Sandbox built WithIsolation runs each request in a
// worker process under a memory limit; see ServeWorker.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	filename     = "tool.star"
	resultPrefix = "Error executing tool: "
)

var ErrInvalidCode = errors.New("invalid tool code")

// FunctionInfo describes the single public function a tool defines.
type FunctionInfo struct {
	Name   string
	Params []string
}

type Sandbox struct {
	timeout  time.Duration
	maxSteps uint64
	env      starlark.StringDict
	logger   *slog.Logger

	isolation *isolation
}

func New(timeout time.Duration, maxSteps uint64, logger *slog.Logger, opts ...Option) *Sandbox {
	s := &Sandbox{
		timeout:  timeout,
		maxSteps: maxSteps,
		env:      predeclared(),
		logger:   logger.With("system", "sandbox"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

func noUniversal(string) bool { return false }

// Validate checks that code parses, references only allowed names, runs its
// top level cleanly and defines exactly one public function.
func (s *Sandbox) Validate(ctx context.Context, code string) (FunctionInfo, error) {
	if s.isolation != nil {
		resp, err := s.isolated(ctx, request{Op: opValidate, Code: code})
		if err != nil {
			return FunctionInfo{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
		}
		if resp.Error != "" {
			return FunctionInfo{}, fmt.Errorf("%w: %s", ErrInvalidCode, resp.Error)
		}
		return resp.Info, nil
	}
	return s.validate(ctx, code)
}

func (s *Sandbox) validate(ctx context.Context, code string) (FunctionInfo, error) {
	_, info, err := s.load(ctx, code)
	if err != nil {
		return FunctionInfo{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	return info, nil
}

// Run invokes the tool's function with params filtered to its declared
// parameter names. Every failure is folded into the returned string.
func (s *Sandbox) Run(ctx context.Context, code string, params map[string]any) string {
	if s.isolation != nil {
		resp, err := s.isolated(ctx, request{Op: opRun, Code: code, Params: params})
		if err != nil {
			return resultPrefix + err.Error()
		}
		return resp.Result
	}
	return s.run(ctx, code, params)
}

func (s *Sandbox) run(ctx context.Context, code string, params map[string]any) string {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	fn, _, err := s.load(ctx, code)
	if err != nil {
		return resultPrefix + message(err)
	}

	kwargs, err := filterKwargs(fn, params)
	if err != nil {
		return resultPrefix + err.Error()
	}

	thread := s.thread(ctx, "run")
	result, err := starlark.Call(thread, fn, nil, kwargs)
	if err != nil {
		s.logger.Debug("tool failed", "function", fn.Name(), "error", err)
		return resultPrefix + message(err)
	}
	return Stringify(result)
}

// Eval evaluates a single expression in the restricted environment.
func (s *Sandbox) Eval(ctx context.Context, expr string) (string, error) {
	if s.isolation != nil {
		resp, err := s.isolated(ctx, request{Op: opEval, Code: expr})
		if err != nil {
			return "", err
		}
		if resp.Error != "" {
			if resp.Invalid {
				return "", fmt.Errorf("%w: %s", ErrInvalidCode, resp.Error)
			}
			return "", errors.New(resp.Error)
		}
		return resp.Result, nil
	}
	return s.eval(ctx, expr)
}

func (s *Sandbox) eval(ctx context.Context, expr string) (string, error) {
	ctx, cancel := s.deadline(ctx)
	defer cancel()

	opts := fileOptions()
	parsed, err := opts.ParseExpr("expr", expr, 0)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if _, err := resolve.ExprOptions(opts, parsed, s.env.Has, noUniversal); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	thread := s.thread(ctx, "eval")
	v, err := starlark.EvalOptions(opts, thread, "expr", expr, s.env)
	if err != nil {
		return "", errors.New(message(err))
	}
	return Stringify(v), nil
}

func (s *Sandbox) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// thread returns a fresh interpreter thread bound to ctx. Cancelling ctx
// stops the computation at the next step boundary.
func (s *Sandbox) thread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, errors.New("load is not permitted")
		},
	}
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}

	go func() {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			thread.Cancel("timeout")
			return
		}
		thread.Cancel("cancelled")
	}()

	return thread
}

// load parses and resolves code against the allow-list, executes its top
// level and returns the single public function it defines.
func (s *Sandbox) load(ctx context.Context, code string) (*starlark.Function, FunctionInfo, error) {
	if strings.TrimSpace(code) == "" {
		return nil, FunctionInfo{}, errors.New("code is empty")
	}

	opts := fileOptions()
	f, err := opts.Parse(filename, code, 0)
	if err != nil {
		return nil, FunctionInfo{}, err
	}
	if err := resolve.File(f, s.env.Has, noUniversal); err != nil {
		return nil, FunctionInfo{}, err
	}

	loadCtx, cancel := s.deadline(ctx)
	defer cancel()

	globals, err := starlark.ExecFileOptions(opts, s.thread(loadCtx, "load"), filename, code, s.env)
	if err != nil {
		return nil, FunctionInfo{}, errors.New(message(err))
	}

	var public []string
	for name, v := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, ok := v.(*starlark.Function); ok {
			public = append(public, name)
		}
	}
	sort.Strings(public)

	switch len(public) {
	case 0:
		return nil, FunctionInfo{}, errors.New("no public function defined")
	case 1:
	default:
		return nil, FunctionInfo{}, fmt.Errorf("exactly one public function is allowed, found %s", strings.Join(public, ", "))
	}

	fn := globals[public[0]].(*starlark.Function)
	return fn, FunctionInfo{Name: public[0], Params: paramNames(fn)}, nil
}

// paramNames lists the named parameters of fn, excluding *args and **kwargs.
func paramNames(fn *starlark.Function) []string {
	n := fn.NumParams()
	if fn.HasVarargs() {
		n--
	}
	if fn.HasKwargs() {
		n--
	}
	names := make([]string, 0, n)
	for i := range n {
		name, _ := fn.Param(i)
		names = append(names, name)
	}
	return names
}

func filterKwargs(fn *starlark.Function, params map[string]any) ([]starlark.Tuple, error) {
	names := paramNames(fn)
	kwargs := make([]starlark.Tuple, 0, len(names))
	for _, name := range names {
		raw, ok := params[name]
		if !ok {
			continue
		}
		v, err := ToValue(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %v", name, err)
		}
		kwargs = append(kwargs, starlark.Tuple{starlark.String(name), v})
	}
	return kwargs, nil
}

// message extracts the interpreter's message without the backtrace.
func message(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Msg
	}
	return err.Error()
}
