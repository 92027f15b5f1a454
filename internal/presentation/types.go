package presentation

import (
	"errors"
	"fmt"
	"time"

	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/timing"
)

// #region collaborators
// Screen is a render surface that can be cleared.
type Screen interface {
	Clear()
}

// Viewport draws its stimuli onto a screen. Drawing reads parameter containers.
type Viewport interface {
	Screen() Screen
	Draw()
}

// Swapper presents the back buffer. On real displays it blocks until vertical retrace.
type Swapper interface {
	SwapBuffers()
}

// SwapFunc adapts a function to Swapper.
type SwapFunc func()

// SwapBuffers calls f.
func (f SwapFunc) SwapBuffers() { f() }

// Event is an input event delivered by an EventSource.
type Event struct {
	Type    string
	Payload any
}

// EventSource is polled once per frame when check_events is set.
type EventSource interface {
	Poll() []Event
}

// EventHandler receives events of one type; an empty Type matches every event.
type EventHandler struct {
	Type   string
	Handle func(Event)
}

// FrameHook is called after every buffer swap of an offline run.
type FrameHook func(frame int)

// #endregion collaborators

// #region duration
// Unit is the unit of a trial duration.
type Unit string

const (
	UnitSeconds Unit = "seconds"
	UnitFrames  Unit = "frames"
	// UnitForever trials only end when the context passed to RunTrial is done.
	UnitForever Unit = "forever"
)

// ErrUnknownDurationUnit is returned when the duration unit is not one of the Unit constants.
var ErrUnknownDurationUnit = errors.New("unknown duration unit")

// Duration is the length of one trial.
type Duration struct {
	Value float64
	Unit  Unit
}

// Seconds is a trial lasting s seconds since go.
func Seconds(s float64) Duration { return Duration{Value: s, Unit: UnitSeconds} }

// Frames is a trial lasting n drawn frames.
func Frames(n int) Duration { return Duration{Value: float64(n), Unit: UnitFrames} }

// Forever is a trial that runs until its context is done.
func Forever() Duration { return Duration{Unit: UnitForever} }

func (d Duration) String() string {
	if d.Unit == UnitForever {
		return "forever"
	}
	return fmt.Sprintf("%g %s", d.Value, d.Unit)
}

// Validate checks the unit.
func (d Duration) Validate() error {
	switch d.Unit {
	case UnitSeconds, UnitFrames, UnitForever:
		return nil
	}
	return fmt.Errorf("duration %q: %w", d.Unit, ErrUnknownDurationUnit)
}

// #endregion duration

// #region parameters
// Names of the presentation's own parameters. They are ordinary fields, so
// controllers may be bound to them.
const (
	FieldDuration         = "go_duration"
	FieldDurationUnit     = "go_duration_unit"
	FieldTriggerArmed     = "trigger_armed"
	FieldTriggerGoIfArmed = "trigger_go_if_armed"
	FieldEnterGoLoop      = "enter_go_loop"
	FieldCheckEvents      = "check_events"
	FieldCollectTiming    = "collect_timing_info"
)

// Schema declares the presentation's parameters and their defaults.
var Schema = param.NewSchema("presentation", []param.Field{
	param.F(FieldDuration, param.Float(5.0)),
	param.F(FieldDurationUnit, param.String(string(UnitSeconds))),
	param.F(FieldTriggerArmed, param.Bool(true)),
	param.F(FieldTriggerGoIfArmed, param.Bool(true)),
	param.F(FieldEnterGoLoop, param.Bool(false)),
	param.F(FieldCheckEvents, param.Bool(true)),
	param.F(FieldCollectTiming, param.Bool(false)),
}, nil)

// #endregion parameters

// #region report
// TrialReport describes one finished trial.
type TrialReport struct {
	StartedAt        time.Time        `json:"started_at"`
	Duration         Duration         `json:"duration"`
	Frames           int              `json:"frames"`
	Elapsed          float64          `json:"elapsed_sec"`
	MeasuredFPS      float64          `json:"measured_fps"`
	FrameControllers int              `json:"frame_controllers"`
	Anomalies        []timing.Anomaly `json:"anomalies,omitempty"`
	Stats            *timing.Stats    `json:"stats,omitempty"`
	FramesDropped    bool             `json:"frames_dropped"` // set only when timing was collected
	Offline          bool             `json:"offline"`
}

// #endregion report
