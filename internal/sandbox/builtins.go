package sandbox

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Allowed is the builtin allow-list available to tool code.
var Allowed = []string{
	"abs", "all", "any", "bool", "dict", "enumerate", "filter", "float",
	"int", "isinstance", "len", "list", "map", "max", "min", "range",
	"round", "set", "sorted", "str", "sum", "tuple", "zip",
}

// predeclared builds the environment every tool sees. Names not present
// here fail resolution, so anything Starlark's universe offers beyond the
// allow-list (print, getattr, hasattr, type, fail, ...) is unreachable.
func predeclared() starlark.StringDict {
	env := starlark.StringDict{
		"None":  starlark.None,
		"True":  starlark.True,
		"False": starlark.False,
	}

	native := starlark.StringDict{
		"filter":     starlark.NewBuiltin("filter", builtinFilter),
		"map":        starlark.NewBuiltin("map", builtinMap),
		"sum":        starlark.NewBuiltin("sum", builtinSum),
		"round":      starlark.NewBuiltin("round", builtinRound),
		"isinstance": starlark.NewBuiltin("isinstance", builtinIsInstance),
	}

	for _, name := range Allowed {
		if v, ok := native[name]; ok {
			env[name] = v
			continue
		}
		if v, ok := starlark.Universe[name]; ok {
			env[name] = v
		}
	}
	return env
}

func builtinFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn, iterable starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &fn, &iterable); err != nil {
		return nil, err
	}

	iter := starlark.Iterate(iterable)
	if iter == nil {
		return nil, fmt.Errorf("%s: %s object is not iterable", b.Name(), iterable.Type())
	}
	defer iter.Done()

	var out []starlark.Value
	var x starlark.Value
	for iter.Next(&x) {
		keep := x.Truth()
		if fn != starlark.None {
			r, err := starlark.Call(thread, fn, starlark.Tuple{x}, nil)
			if err != nil {
				return nil, err
			}
			keep = r.Truth()
		}
		if keep {
			out = append(out, x)
		}
	}
	return starlark.NewList(out), nil
}

func builtinMap(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%s: need a function and at least one iterable", b.Name())
	}

	fn := args[0]
	iters := make([]starlark.Iterator, 0, len(args)-1)
	defer func() {
		for _, it := range iters {
			it.Done()
		}
	}()

	for _, a := range args[1:] {
		it := starlark.Iterate(a)
		if it == nil {
			return nil, fmt.Errorf("%s: %s object is not iterable", b.Name(), a.Type())
		}
		iters = append(iters, it)
	}

	var out []starlark.Value
	for {
		call := make(starlark.Tuple, len(iters))
		for i, it := range iters {
			if !it.Next(&call[i]) {
				return starlark.NewList(out), nil
			}
		}
		r, err := starlark.Call(thread, fn, call, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
}

func builtinSum(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Value
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}
	if _, ok := start.(starlark.String); ok {
		return nil, fmt.Errorf("%s: can't sum strings, use ''.join(seq) instead", b.Name())
	}

	iter := starlark.Iterate(iterable)
	if iter == nil {
		return nil, fmt.Errorf("%s: %s object is not iterable", b.Name(), iterable.Type())
	}
	defer iter.Done()

	acc := start
	var x starlark.Value
	for iter.Next(&x) {
		next, err := starlark.Binary(syntax.PLUS, acc, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		acc = next
	}
	return acc, nil
}

// builtinRound rounds half to even, matching the numeric semantics tool
// authors expect from round().
func builtinRound(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var ndigits starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "number", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}

	if i, ok := x.(starlark.Int); ok && ndigits == starlark.None {
		return i, nil
	}

	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: type %s doesn't define __round__", b.Name(), x.Type())
	}

	if ndigits == starlark.None {
		return starlark.NumberToInt(starlark.Float(math.RoundToEven(f)))
	}

	var n int
	if err := starlark.AsInt(ndigits, &n); err != nil {
		return nil, fmt.Errorf("%s: ndigits: %w", b.Name(), err)
	}
	scale := math.Pow(10, float64(n))
	rounded := math.RoundToEven(f*scale) / scale

	if _, isInt := x.(starlark.Int); isInt {
		return starlark.NumberToInt(starlark.Float(rounded))
	}
	return starlark.Float(rounded), nil
}

// typeNames maps the constructor builtins usable as isinstance targets to
// the Type() strings of the values they produce.
var typeNames = map[string]string{
	"bool":  "bool",
	"dict":  "dict",
	"float": "float",
	"int":   "int",
	"list":  "list",
	"set":   "set",
	"str":   "string",
	"tuple": "tuple",
}

func builtinIsInstance(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var obj, classinfo starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &obj, &classinfo); err != nil {
		return nil, err
	}

	targets := starlark.Tuple{classinfo}
	if t, ok := classinfo.(starlark.Tuple); ok {
		targets = t
	}

	for _, target := range targets {
		ctor, ok := target.(*starlark.Builtin)
		if !ok {
			return nil, fmt.Errorf("%s: arg 2 must be a type or tuple of types, got %s", b.Name(), target.Type())
		}
		want, ok := typeNames[ctor.Name()]
		if !ok {
			return nil, fmt.Errorf("%s: %s is not a type", b.Name(), ctor.Name())
		}
		if obj.Type() == want {
			return starlark.True, nil
		}
		if want == "int" && obj.Type() == "bool" {
			return starlark.True, nil
		}
	}
	return starlark.False, nil
}
