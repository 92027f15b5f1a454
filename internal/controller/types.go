package controller

import (
	"fmt"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region temporal-kind

// TemporalKind selects which time variable a controller is driven by.
type TemporalKind int

const (
	TimeSecAbsolute TemporalKind = 1
	TimeSecSinceGo  TemporalKind = 2
	FramesSinceGo   TemporalKind = 3
)

// String returns the wire name, e.g. TIME_SEC_SINCE_GO.
func (k TemporalKind) String() string {
	switch k {
	case TimeSecAbsolute:
		return "TIME_SEC_ABSOLUTE"
	case TimeSecSinceGo:
		return "TIME_SEC_SINCE_GO"
	case FramesSinceGo:
		return "FRAMES_SINCE_GO"
	}
	return fmt.Sprintf("TemporalKind(%d)", int(k))
}

// ParseTemporalKind accepts the wire names, optionally qualified as "Controller.X".
func ParseTemporalKind(s string) (TemporalKind, error) {
	switch trimQualifier(s) {
	case "TIME_SEC_ABSOLUTE":
		return TimeSecAbsolute, nil
	case "TIME_SEC_SINCE_GO":
		return TimeSecSinceGo, nil
	case "FRAMES_SINCE_GO":
		return FramesSinceGo, nil
	}
	return 0, fmt.Errorf("unknown temporal kind %q", s)
}

// #endregion temporal-kind

// #region cadence
// Cadence controls when the scheduler evaluates a controller.
type Cadence int

const (
	// EveryFrame controllers run once per rendered frame, in and out of trials.
	EveryFrame Cadence = 1
	// Transitions controllers run once when a trial starts and once when it ends.
	Transitions Cadence = 2
	// NowThenTransitions controllers run at the next opportunity, then behave as Transitions.
	NowThenTransitions Cadence = 3
)

// String returns the wire name, e.g. EVERY_FRAME.
func (c Cadence) String() string {
	switch c {
	case EveryFrame:
		return "EVERY_FRAME"
	case Transitions:
		return "TRANSITIONS"
	case NowThenTransitions:
		return "NOW_THEN_TRANSITIONS"
	}
	return fmt.Sprintf("Cadence(%d)", int(c))
}

// ParseCadence accepts the wire names, optionally qualified as "Controller.X".
func ParseCadence(s string) (Cadence, error) {
	switch trimQualifier(s) {
	case "EVERY_FRAME":
		return EveryFrame, nil
	case "TRANSITIONS":
		return Transitions, nil
	case "NOW_THEN_TRANSITIONS":
		return NowThenTransitions, nil
	}
	return 0, fmt.Errorf("unknown eval cadence %q", s)
}

func trimQualifier(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}

// #endregion cadence

// #region temporal
// Temporal is the time snapshot handed to every controller evaluated in one frame.
// Outside a trial SinceGo and Frames are -1 and InTrial is false; Absolute is always set.
type Temporal struct {
	Absolute float64
	SinceGo  float64
	Frames   int
	InTrial  bool
}

// Idle returns the snapshot used between trials.
func Idle(absolute float64) Temporal {
	return Temporal{Absolute: absolute, SinceGo: -1, Frames: -1}
}

// Active returns an in-trial snapshot.
func Active(absolute, sinceGo float64, frames int) Temporal {
	return Temporal{Absolute: absolute, SinceGo: sinceGo, Frames: frames, InTrial: true}
}

// For returns the value of the variable selected by kind as a float.
func (t Temporal) For(kind TemporalKind) float64 {
	switch kind {
	case TimeSecAbsolute:
		return t.Absolute
	case FramesSinceGo:
		return float64(t.Frames)
	}
	return t.SinceGo
}

// #endregion temporal

// #region controller
// Controller produces parameter values over the life of a trial.
type Controller interface {
	ReturnKind() param.Kind
	TemporalKind() TemporalKind
	Cadence() Cadence
	// EvalActive is called during a trial and at its start transition.
	EvalActive(t Temporal) (param.Value, error)
	// EvalIdle is called between trials and at the end transition.
	EvalIdle(t Temporal) (param.Value, error)
}

// Poller is implemented by controllers that pick up external changes; the
// scheduler calls Poll before deciding whether to evaluate them.
type Poller interface {
	Poll()
}

// Describer is implemented by controllers that can print themselves in the line protocol.
type Describer interface {
	Describe() string
}

// Describe renders c for display.
func Describe(c Controller) string {
	if d, ok := c.(Describer); ok {
		return d.Describe()
	}
	return fmt.Sprintf("%T(%s, %s, %s)", c, c.ReturnKind(), c.TemporalKind(), c.Cadence())
}

// #endregion controller

// #region options
// Options carries the metadata shared by every controller variant.
// Zero fields take defaults: return kind inferred, TimeSecSinceGo, EveryFrame.
type Options struct {
	ReturnKind param.Kind
	Temporal   TemporalKind
	Cadence    Cadence
}

type meta struct {
	kind     param.Kind
	temporal TemporalKind
	cadence  Cadence
}

func newMeta(opts Options, inferred param.Kind) (meta, error) {
	m := meta{kind: opts.ReturnKind, temporal: opts.Temporal, cadence: opts.Cadence}
	if m.kind == param.KindInvalid {
		m.kind = inferred
	}
	if m.temporal == 0 {
		m.temporal = TimeSecSinceGo
	}
	if m.cadence == 0 {
		m.cadence = EveryFrame
	}
	if m.kind == param.KindInvalid {
		return meta{}, fmt.Errorf("no return kind")
	}
	if m.temporal < TimeSecAbsolute || m.temporal > FramesSinceGo {
		return meta{}, fmt.Errorf("invalid temporal kind %d", int(m.temporal))
	}
	if m.cadence < EveryFrame || m.cadence > NowThenTransitions {
		return meta{}, fmt.Errorf("invalid eval cadence %d", int(m.cadence))
	}
	return m, nil
}

// ReturnKind is the kind every evaluation returns.
func (m meta) ReturnKind() param.Kind { return m.kind }
// TemporalKind selects the time variable the controller reads.
func (m meta) TemporalKind() TemporalKind { return m.temporal }

// Cadence says when the scheduler evaluates the controller.
func (m meta) Cadence() Cadence { return m.cadence }

// coerce re-tags v as the declared return kind or fails.
func (m meta) coerce(v param.Value) (param.Value, error) {
	out, ok := param.Convert(v, m.kind)
	if !ok {
		return param.Value{}, fmt.Errorf("controller returned %s, declared %s", v.Kind(), m.kind)
	}
	return out, nil
}

// #endregion options
