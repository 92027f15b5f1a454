package controller

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region formula
// Formula evaluates an expression of one time variable: t (seconds since go),
// t_abs (absolute seconds) or f (frames since go), depending on the temporal kind.
type Formula struct {
	meta
	activeSrc string
	idleSrc   string
	active    *vm.Program
	idle      *vm.Program
	varName   string
	env       map[string]any
}

// NewFormula compiles both expressions and evaluates them once with the time
// variable at zero. The return kind is inferred from that result unless declared.
// An empty idle expression repeats the active one.
func NewFormula(active, idle string, opts Options) (*Formula, error) {
	if idle == "" {
		idle = active
	}
	temporal := opts.Temporal
	if temporal == 0 {
		temporal = TimeSecSinceGo
	}
	f := &Formula{
		activeSrc: active,
		idleSrc:   idle,
		varName:   variableFor(temporal),
		env:       namespace(),
	}
	f.env[f.varName] = zeroFor(temporal)

	var err error
	if f.active, err = compile(active, f.env); err != nil {
		return nil, err
	}
	if f.idle, err = compile(idle, f.env); err != nil {
		return nil, err
	}

	probe, err := f.run(f.active, f.activeSrc)
	if err != nil {
		return nil, err
	}
	if _, err := f.run(f.idle, f.idleSrc); err != nil {
		return nil, err
	}
	opts.Temporal = temporal
	if f.meta, err = newMeta(opts, probe.Kind()); err != nil {
		return nil, fmt.Errorf("formula %q: %w", active, err)
	}
	if _, err := f.coerce(probe); err != nil {
		return nil, fmt.Errorf("formula %q: %w", active, err)
	}
	return f, nil
}

func (f *Formula) EvalActive(t Temporal) (param.Value, error) {
	return f.eval(f.active, f.activeSrc, t)
}

func (f *Formula) EvalIdle(t Temporal) (param.Value, error) {
	return f.eval(f.idle, f.idleSrc, t)
}

func (f *Formula) Describe() string {
	return fmt.Sprintf("eval_str(%q, %q, %s, %s, %s)", f.activeSrc, f.idleSrc, f.kind, f.temporal, f.cadence)
}

func (f *Formula) eval(p *vm.Program, src string, t Temporal) (param.Value, error) {
	if f.temporal == FramesSinceGo {
		f.env[f.varName] = t.Frames
	} else {
		f.env[f.varName] = t.For(f.temporal)
	}
	v, err := f.run(p, src)
	if err != nil {
		return param.Value{}, err
	}
	return f.coerce(v)
}

func (f *Formula) run(p *vm.Program, src string) (param.Value, error) {
	out, err := expr.Run(p, f.env)
	if err != nil {
		return param.Value{}, fmt.Errorf("formula %q: %w", src, err)
	}
	v, err := param.FromAny(out)
	if err != nil {
		return param.Value{}, fmt.Errorf("formula %q: %w", src, err)
	}
	return v, nil
}

func compile(src string, env map[string]any) (*vm.Program, error) {
	opts := append([]expr.Option{expr.Env(env)}, functions...)
	p, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", src, err)
	}
	return p, nil
}

func variableFor(kind TemporalKind) string {
	switch kind {
	case TimeSecAbsolute:
		return "t_abs"
	case FramesSinceGo:
		return "f"
	}
	return "t"
}

func zeroFor(kind TemporalKind) any {
	if kind == FramesSinceGo {
		return 0
	}
	return 0.0
}

// #endregion formula

// #region namespace
// namespace holds the constants visible to formulas. Each Formula gets its own copy
// because the time variable is written into it before every run.
func namespace() map[string]any {
	return map[string]any{
		"pi": math.Pi,
		"e":  math.E,
	}
}

var functions = []expr.Option{
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("asin", math.Asin),
	unary("acos", math.Acos),
	unary("atan", math.Atan),
	unary("sqrt", math.Sqrt),
	unary("exp", math.Exp),
	unary("log", math.Log),
	unary("log10", math.Log10),
	unary("fabs", math.Abs),
	unary("degrees", func(x float64) float64 { return x * 180 / math.Pi }),
	unary("radians", func(x float64) float64 { return x * math.Pi / 180 }),
	binary("atan2", math.Atan2),
	binary("pow", math.Pow),
	binary("fmod", math.Mod),
	binary("hypot", math.Hypot),
	expr.Function("vec", func(params ...any) (any, error) {
		out := make([]float64, len(params))
		for i, p := range params {
			x, err := toFloat(p)
			if err != nil {
				return nil, fmt.Errorf("vec: %w", err)
			}
			out[i] = x
		}
		return out, nil
	}),
	expr.Function("dot", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("dot: want 2 arguments, got %d", len(params))
		}
		a, err := toVec(params[0])
		if err != nil {
			return nil, err
		}
		b, err := toVec(params[1])
		if err != nil {
			return nil, err
		}
		if len(a) != len(b) {
			return nil, fmt.Errorf("dot: length %d vs %d", len(a), len(b))
		}
		var sum float64
		for i := range a {
			sum += a[i] * b[i]
		}
		return sum, nil
	}),
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s: want 1 argument, got %d", name, len(params))
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x), nil
	})
}

func binary(name string, fn func(float64, float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("%s: want 2 arguments, got %d", name, len(params))
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		y, err := toFloat(params[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return fn(x, y), nil
	})
}

func toFloat(x any) (float64, error) {
	v, err := param.FromAny(x)
	if err != nil {
		return 0, err
	}
	if !param.KindFloat.Accepts(v.Kind()) {
		return 0, fmt.Errorf("%s is not a number", v.Kind())
	}
	return v.AsFloat(), nil
}

func toVec(x any) ([]float64, error) {
	v, err := param.FromAny(x)
	if err != nil {
		return nil, err
	}
	if v.Kind() != param.KindVec {
		return nil, fmt.Errorf("%s is not a vector", v.Kind())
	}
	return v.AsVec(), nil
}

// #endregion namespace
