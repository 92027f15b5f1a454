package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/message"
	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/presentation"
	"github.com/visionegg/visionegg-sub000/internal/remote"
)

// #region types
// StepResult captures the outcome of one fixture step.
type StepResult struct {
	Index  int
	Op     string
	Frames int
	// Values holds the drawn value of every field, one entry per rendered frame.
	Values     map[string][]param.Value
	Err        string
	Pass       bool
	Mismatches []string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps int
	Passed     int
	Failed     int
	Frames     int
	Submits    int
	Rejected   int
}

// Origin identifies replay submissions in swap events.
const Origin = "replay"

// #endregion types

// #region recorder
type nullScreen struct{}

func (nullScreen) Clear() {}

// recorder is a viewport that snapshots the stimulus on every draw.
type recorder struct {
	target *param.Container
	frames []map[string]param.Value
}

func (r *recorder) Screen() presentation.Screen { return nullScreen{} }
func (r *recorder) Draw() { r.frames = append(r.frames, r.target.Snapshot()) }

func (r *recorder) take() map[string][]param.Value {
	out := make(map[string][]param.Value)
	for _, snap := range r.frames {
		for name, v := range snap {
			out[name] = append(out[name], v)
		}
	}
	r.frames = nil
	return out
}

// #endregion recorder

// #region replay
// Run executes the fixture on a fixed-rate clock. Step failures are reported in
// the results; an error is returned only when the fixture itself is invalid.
func Run(ctx context.Context, f *Fixture) ([]StepResult, error) {
	rate := f.RefreshHz
	if rate <= 0 {
		rate = 60
	}
	schema, err := f.Schema()
	if err != nil {
		return nil, err
	}
	target, err := param.NewContainer(schema, nil)
	if err != nil {
		return nil, fmt.Errorf("stimulus: %w", err)
	}

	rec := &recorder{target: target}
	p, err := presentation.New(presentation.Options{
		Viewports: []presentation.Viewport{rec},
		Clock:     presentation.NewFixedRateClock(rate, 0),
		Sink:      message.Discard,
	})
	if err != nil {
		return nil, err
	}

	reg := remote.NewRegistry()
	for _, b := range f.Bindings {
		if err := bind(reg, p, target, b); err != nil {
			return nil, err
		}
	}

	results := make([]StepResult, 0, len(f.Steps))
	for i, step := range f.Steps {
		res := StepResult{Index: i, Op: step.Op}
		switch step.Op {
		case "submit":
			err := reg.Submit(step.Name, step.Line, Origin)
			res.Pass = checkSubmit(&res, err, step.ExpectError)
		case "trial":
			runTrial(ctx, p, reg, rec, rate, step, &res)
		case "idle":
			for c := 0; c < step.Cycles; c++ {
				if err := p.IdleCycle(); err != nil {
					res.Err = err.Error()
					break
				}
			}
			res.Values = rec.take()
			res.Frames = step.Cycles
		default:
			return nil, fmt.Errorf("step %d: unknown op %q", i, step.Op)
		}
		if step.Op != "submit" {
			res.Mismatches = compare(step.Expect, res.Values)
			res.Pass = res.Err == "" && len(res.Mismatches) == 0
		}
		results = append(results, res)
	}
	return results, nil
}

func bind(reg *remote.Registry, p *presentation.Presentation, target *param.Container, b FixtureBinding) error {
	field := b.Field
	if field == "" {
		field = b.Name
	}
	kind, err := target.FieldKind(field)
	if err != nil {
		return fmt.Errorf("binding %s: %w", b.Name, err)
	}
	if b.Kind != "" {
		if kind, err = param.ParseKind(b.Kind); err != nil {
			return fmt.Errorf("binding %s: %w", b.Name, err)
		}
	}
	initial, err := initialController(b.Initial, kind)
	if err != nil {
		return fmt.Errorf("binding %s: %w", b.Name, err)
	}
	if initial == nil && b.Hold {
		v := target.MustGet(field)
		if initial, err = controller.NewConstant(v, v, controller.Options{}); err != nil {
			return fmt.Errorf("binding %s: %w", b.Name, err)
		}
	}
	proxy, err := reg.Register(b.Name, initial, kind)
	if err != nil {
		return fmt.Errorf("binding %s: %w", b.Name, err)
	}
	if err := p.Bind(target, field, proxy); err != nil {
		return fmt.Errorf("binding %s: %w", b.Name, err)
	}
	return nil
}

// initialController builds the controller a binding starts with; nil selects
// the registry default.
func initialController(line string, kind param.Kind) (controller.Controller, error) {
	if line == "" {
		return nil, nil
	}
	cmd, err := remote.ParseCommand(line)
	if err != nil {
		return nil, err
	}
	return remote.Build(cmd, kind)
}

func runTrial(ctx context.Context, p *presentation.Presentation, reg *remote.Registry, rec *recorder, rate float64, step FixtureStep, res *StepResult) {
	unit := presentation.Unit(step.Unit)
	if unit == "" {
		unit = presentation.UnitFrames
	}
	if err := p.SetDuration(presentation.Duration{Value: step.Duration, Unit: unit}); err != nil {
		res.Err = err.Error()
		return
	}
	hook := func(frame int) {
		for _, s := range step.Submits {
			if s.Frame != frame {
				continue
			}
			if err := reg.Submit(s.Name, s.Line, Origin); err != nil {
				res.Err = err.Error()
			}
		}
	}
	rep, err := p.RunOffline(ctx, rate, hook)
	res.Values = rec.take()
	if err != nil {
		res.Err = err.Error()
		return
	}
	res.Frames = rep.Frames
}

func checkSubmit(res *StepResult, err error, expect string) bool {
	if err == nil {
		return expect == ""
	}
	res.Err = err.Error()
	var perr *remote.ProtocolError
	if expect == "protocol" {
		return errors.As(err, &perr)
	}
	return expect != "" && (expect == "any" || expect == res.Err)
}

// #endregion replay

// #region compare
func compare(expect map[string][]any, got map[string][]param.Value) []string {
	names := make([]string, 0, len(expect))
	for name := range expect {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		want, have := expect[name], got[name]
		if len(want) != len(have) {
			out = append(out, fmt.Sprintf("%s: %d frames drawn, want %d", name, len(have), len(want)))
			continue
		}
		for i := range want {
			if !matches(want[i], have[i]) {
				out = append(out, fmt.Sprintf("%s[%d] = %v, want %v", name, i, have[i], want[i]))
			}
		}
	}
	return out
}

func matches(want any, got param.Value) bool {
	if want == nil {
		return got.IsUnset()
	}
	w, err := param.FromAny(want)
	if err != nil {
		return false
	}
	if param.KindFloat.Accepts(w.Kind()) && param.KindFloat.Accepts(got.Kind()) && got.Kind() != param.KindBool {
		return math.Abs(w.AsFloat()-got.AsFloat()) < 1e-9
	}
	if conv, ok := param.Convert(w, got.Kind()); ok {
		w = conv
	}
	return w.Equal(got)
}

// #endregion compare

// #region summarize
// Summarize aggregates step results.
func Summarize(results []StepResult) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		if r.Pass {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Frames += r.Frames
		if r.Op == "submit" {
			s.Submits++
			if r.Err != "" {
				s.Rejected++
			}
		}
	}
	return s
}

// #endregion summarize
