package presentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/message"
	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/timing"
)

// #region run-trial
// RunTrial runs one trial. Until trigger_armed and trigger_go_if_armed are both
// true it keeps running idle cycles. It then evaluates Transitions controllers
// with the active phase, renders frames until the duration is reached, evaluates
// Transitions controllers with the idle phase and checks the measured frame rate.
// The context is consulted while waiting for the trigger and, for forever
// trials, between frames.
func (p *Presentation) RunTrial(ctx context.Context) (*TrialReport, error) {
	for !(p.params.Bool(FieldTriggerArmed) && p.params.Bool(FieldTriggerGoIfArmed)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.IdleCycle(); err != nil {
			return nil, err
		}
	}

	rep, stamps, err := p.runLoop(ctx, nil)
	if err != nil {
		return nil, err
	}

	res := p.checker.Evaluate(rep.Frames, rep.Elapsed, p.frameControllers)
	rep.MeasuredFPS = res.MeasuredFPS
	rep.Anomalies = res.Anomalies
	if stamps != nil {
		st := timing.Compute(stamps)
		rep.Stats = &st
		if a, dropped := p.checker.LongestFrame(st); dropped {
			rep.FramesDropped = true
			rep.Anomalies = append(rep.Anomalies, a)
		}
	}
	for _, a := range rep.Anomalies {
		level := message.Warning
		if a.Severity == timing.SeverityError {
			level = message.Error
		}
		p.sink.Add(level, a.Reason)
	}
	if rep.Stats != nil {
		p.sink.Add(message.Info, rep.Stats.Format())
	}
	return rep, nil
}

// #endregion run-trial

// #region run-offline
// ErrOfflineForever is returned by RunOffline for trials without an end.
var ErrOfflineForever = errors.New("offline run needs a finite duration")

// RunOffline runs one trial on a synthetic clock advancing 1/fps per frame, ignoring
// the triggers and frame-rate checks. hook, when set, runs after every swap, for
// example to capture the frame.
func (p *Presentation) RunOffline(ctx context.Context, fps float64, hook FrameHook) (*TrialReport, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("run offline: fps must be positive, got %g", fps)
	}
	if p.Duration().Unit == UnitForever {
		return nil, fmt.Errorf("run offline: %w", ErrOfflineForever)
	}
	saved := p.clock
	p.clock = NewFixedRateClock(fps, saved.Now())
	defer func() { p.clock = saved }()

	rep, _, err := p.runLoop(ctx, hook)
	if err != nil {
		return nil, err
	}
	rep.Offline = true
	if rep.Elapsed > 0 {
		rep.MeasuredFPS = float64(rep.Frames) / rep.Elapsed
	}
	return rep, nil
}

// #endregion run-offline

// #region loop
// runLoop runs the transitions and the frame loop. It returns the frame timestamps
// when collect_timing_info is set.
func (p *Presentation) runLoop(ctx context.Context, hook FrameHook) (*TrialReport, []float64, error) {
	dur := p.Duration()
	if err := dur.Validate(); err != nil {
		return nil, nil, err
	}

	rep := &TrialReport{
		StartedAt:        time.Now().UTC(),
		Duration:         dur,
		FrameControllers: p.frameControllers,
	}
	start := p.clock.Now()
	if err := p.callControllers(true, true, controller.Active(start, 0, 0)); err != nil {
		return nil, nil, err
	}

	var stamps []float64
	collect := p.params.Bool(FieldCollectTiming)
	if collect {
		stamps = append(stamps, start)
	}

	now := start
	frames := 0
	for {
		dur = p.Duration()
		done, err := finished(ctx, dur, now-start, frames)
		if err != nil {
			return nil, nil, err
		}
		if done {
			break
		}
		// one snapshot per frame, shared by every controller
		if err := p.callControllers(true, false, controller.Active(now, now-start, frames)); err != nil {
			return nil, nil, err
		}
		p.render()
		if hook != nil {
			hook(frames)
		}
		now = p.clock.Now()
		frames++
		if collect {
			stamps = append(stamps, now)
		}
		if p.params.Bool(FieldCheckEvents) {
			p.pollEvents()
		}
	}

	if err := p.callControllers(false, true, controller.Idle(now)); err != nil {
		return nil, nil, err
	}
	rep.Frames = frames
	rep.Elapsed = now - start
	return rep, stamps, nil
}

func finished(ctx context.Context, d Duration, elapsed float64, frames int) (bool, error) {
	switch d.Unit {
	case UnitSeconds:
		return elapsed >= d.Value, nil
	case UnitFrames:
		return float64(frames) >= d.Value, nil
	case UnitForever:
		return ctx.Err() != nil, nil
	}
	return false, fmt.Errorf("duration %q: %w", d.Unit, ErrUnknownDurationUnit)
}

// #endregion loop

// #region idle
// IdleCycle renders one frame between trials. EveryFrame controllers, and
// NowThenTransitions controllers that have not run yet, are evaluated with the
// idle phase and a snapshot that is not in a trial.
func (p *Presentation) IdleCycle() error {
	if err := p.callControllers(false, false, controller.Idle(p.clock.Now())); err != nil {
		return err
	}
	p.render()
	if p.params.Bool(FieldCheckEvents) {
		p.pollEvents()
	}
	return nil
}

// RunForever runs idle cycles until ctx is done. Whenever enter_go_loop becomes
// true it is reset and a trial is run. Cancellation is only noticed between
// cycles, so a running trial always completes. Returns nil on cancellation.
func (p *Presentation) RunForever(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.IdleCycle(); err != nil {
			return err
		}
		if !p.params.Bool(FieldEnterGoLoop) {
			continue
		}
		if err := p.params.Set(FieldEnterGoLoop, param.Bool(false)); err != nil {
			return err
		}
		rep, err := p.RunTrial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if p.onTrialEnd != nil {
			p.onTrialEnd(rep)
		}
	}
}

// #endregion idle

// #region dispatch
// callControllers evaluates the bindings scheduled for this point. Per-frame calls
// run EveryFrame controllers; transition calls run Transitions controllers.
// NowThenTransitions controllers run at whichever comes first, then count as Transitions.
func (p *Presentation) callControllers(active, transition bool, t controller.Temporal) error {
	for i := range p.bindings {
		b := &p.bindings[i]
		if pl, ok := b.ctrl.(controller.Poller); ok {
			pl.Poll()
		}

		cadence := b.ctrl.Cadence()
		if cadence == controller.NowThenTransitions && b.demoted {
			cadence = controller.Transitions
		}
		switch cadence {
		case controller.EveryFrame:
			if transition {
				continue
			}
		case controller.Transitions:
			if !transition {
				continue
			}
		case controller.NowThenTransitions:
			b.demoted = true
		default:
			continue
		}

		var v param.Value
		var err error
		if active {
			v, err = b.ctrl.EvalActive(t)
		} else {
			v, err = b.ctrl.EvalIdle(t)
		}
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", b.label(), err)
		}
		if b.target == nil {
			continue
		}
		if err := b.target.Set(b.field, v); err != nil {
			return fmt.Errorf("evaluate %s: %w", b.label(), err)
		}
	}
	return nil
}

// render clears every distinct screen once, draws every viewport and swaps.
func (p *Presentation) render() {
	p.screens = p.screens[:0]
	for _, vp := range p.viewports {
		s := vp.Screen()
		seen := false
		for _, have := range p.screens {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			p.screens = append(p.screens, s)
		}
	}
	for _, s := range p.screens {
		s.Clear()
	}
	for _, vp := range p.viewports {
		vp.Draw()
	}
	p.swapper.SwapBuffers()
	if fa, ok := p.clock.(FrameAdvancer); ok {
		fa.AdvanceFrame()
	}
}

func (p *Presentation) pollEvents() {
	if p.events == nil {
		return
	}
	for _, ev := range p.events.Poll() {
		for _, h := range p.handlers {
			if h.Type == "" || h.Type == ev.Type {
				h.Handle(ev)
			}
		}
	}
}

// #endregion dispatch
