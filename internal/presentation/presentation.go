package presentation

import (
	"fmt"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/message"
	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/timing"
)

// #region options
// Options configures a Presentation. Only Viewports is commonly required;
// the rest fall back to a wall clock, a no-op swap, no events and a discarding sink.
type Options struct {
	Viewports []Viewport
	Swapper   Swapper
	Clock     Clock
	Events    EventSource
	Handlers  []EventHandler
	Sink      message.Sink
	Timing    timing.Config
	// Overrides for the presentation's own parameters, see Schema.
	Overrides map[string]param.Value
	// OnTrialEnd is called by RunForever after every trial.
	OnTrialEnd func(*TrialReport)
}

// #endregion options

// #region presentation
// Presentation owns the render loop. It evaluates bound controllers, writes their
// results into parameter containers, then clears, draws and swaps.
// All methods must be called from the goroutine that drives the display.
type Presentation struct {
	params     *param.Container
	viewports  []Viewport
	swapper    Swapper
	clock      Clock
	events     EventSource
	handlers   []EventHandler
	sink       message.Sink
	checker    *timing.Checker
	onTrialEnd func(*TrialReport)

	bindings         []binding
	frameControllers int
	screens          []Screen
}

type binding struct {
	target *param.Container // nil for unattached controllers
	field  string
	ctrl   controller.Controller
	// frame-driven at bind time; used to undo the count on unbind
	countsFrames bool
	// a NowThenTransitions controller that already ran once
	demoted bool
}

func (b *binding) label() string {
	if b.target == nil {
		return fmt.Sprintf("unattached %s", controller.Describe(b.ctrl))
	}
	return fmt.Sprintf("%s.%s", b.target.Schema(), b.field)
}

// New creates a Presentation from opts.
func New(opts Options) (*Presentation, error) {
	params, err := param.NewContainer(Schema, opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("new presentation: %w", err)
	}
	p := &Presentation{
		params:     params,
		viewports:  opts.Viewports,
		swapper:    opts.Swapper,
		clock:      opts.Clock,
		events:     opts.Events,
		handlers:   opts.Handlers,
		sink:       opts.Sink,
		onTrialEnd: opts.OnTrialEnd,
	}
	if p.swapper == nil {
		p.swapper = SwapFunc(func() {})
	}
	if p.clock == nil {
		p.clock = WallClock{}
	}
	if p.sink == nil {
		p.sink = message.Discard
	}
	cfg := opts.Timing
	if cfg == (timing.Config{}) {
		cfg = timing.DefaultConfig()
	}
	p.checker = timing.NewChecker(cfg)
	if err := p.Duration().Validate(); err != nil {
		return nil, fmt.Errorf("new presentation: %w", err)
	}
	return p, nil
}

// Parameters returns the presentation's own parameter container.
func (p *Presentation) Parameters() *param.Container {
	return p.params
}

// Duration returns the configured trial duration.
func (p *Presentation) Duration() Duration {
	return Duration{
		Value: p.params.Float(FieldDuration),
		Unit:  Unit(p.params.Str(FieldDurationUnit)),
	}
}

// SetDuration sets the trial duration.
func (p *Presentation) SetDuration(d Duration) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := p.params.Set(FieldDuration, param.Float(d.Value)); err != nil {
		return err
	}
	return p.params.Set(FieldDurationUnit, param.String(string(d.Unit)))
}

// Clock returns the clock currently driving the loop.
func (p *Presentation) Clock() Clock {
	return p.clock
}

// #endregion presentation

// #region bind
// Bind attaches ctrl to field of target. The field must be mutable and accept the
// controller's return kind.
func (p *Presentation) Bind(target *param.Container, field string, ctrl controller.Controller) error {
	if ctrl == nil {
		return fmt.Errorf("bind %s: nil controller", field)
	}
	if target == nil {
		return fmt.Errorf("bind %s: nil container", field)
	}
	kind, err := target.FieldKind(field)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	if target.IsConstant(field) {
		return fmt.Errorf("bind %s: %w cannot be controlled", field, param.ErrConstantField)
	}
	if !kind.Accepts(ctrl.ReturnKind()) {
		return &param.TypeMismatchError{Field: field, Got: ctrl.ReturnKind(), Want: kind}
	}
	p.add(binding{target: target, field: field, ctrl: ctrl})
	return nil
}

// BindUnattached registers a controller that is evaluated on schedule but whose
// result is discarded. Listener-style controllers use this to get polled.
func (p *Presentation) BindUnattached(ctrl controller.Controller) error {
	if ctrl == nil {
		return fmt.Errorf("bind unattached: nil controller")
	}
	p.add(binding{ctrl: ctrl})
	return nil
}

func (p *Presentation) add(b binding) {
	b.countsFrames = b.ctrl.TemporalKind() == controller.FramesSinceGo
	if b.countsFrames {
		p.frameControllers++
	}
	p.bindings = append(p.bindings, b)
}

// Unbind removes controllers from field of target and returns how many were removed.
// With a nil ctrl every controller on the field goes; otherwise only the first
// binding of that controller instance. Pass a nil target to remove an unattached controller.
func (p *Presentation) Unbind(target *param.Container, field string, ctrl controller.Controller) int {
	if ctrl != nil {
		idx := -1
		for i := range p.bindings {
			b := &p.bindings[i]
			if b.target == target && (target == nil || b.field == field) && b.ctrl == ctrl {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0
		}
		p.remove(idx)
		return 1
	}

	removed := 0
	for i := len(p.bindings) - 1; i >= 0; i-- {
		b := &p.bindings[i]
		if b.target == target && b.field == field {
			p.remove(i)
			removed++
		}
	}
	return removed
}

func (p *Presentation) remove(i int) {
	if p.bindings[i].countsFrames {
		p.frameControllers--
	}
	p.bindings = append(p.bindings[:i], p.bindings[i+1:]...)
}

// FrameControllerCount returns the number of bound controllers driven by frame counts.
func (p *Presentation) FrameControllerCount() int {
	return p.frameControllers
}

// Bindings returns the number of bound controllers.
func (p *Presentation) Bindings() int {
	return len(p.bindings)
}

// #endregion bind
