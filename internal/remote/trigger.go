package remote

import (
	"sync/atomic"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region trigger
// Trigger is a boolean controller that answers true once, between trials, for
// each remote go request. Bound to enter_go_loop or trigger_go_if_armed it
// starts the next trial.
type Trigger struct {
	pending atomic.Int64
	fired   atomic.Int64
}

// NewTrigger creates an idle trigger.
func NewTrigger() *Trigger { return &Trigger{} }

// Fire requests one trial. Safe from any goroutine.
func (t *Trigger) Fire() {
	t.pending.Add(1)
	t.fired.Add(1)
}

// Fired returns the number of go requests received.
func (t *Trigger) Fired() int64 { return t.fired.Load() }

func (t *Trigger) ReturnKind() param.Kind { return param.KindBool }
func (t *Trigger) TemporalKind() controller.TemporalKind { return controller.TimeSecAbsolute }
func (t *Trigger) Cadence() controller.Cadence { return controller.EveryFrame }

func (t *Trigger) EvalActive(controller.Temporal) (param.Value, error) {
	return param.Bool(false), nil
}

func (t *Trigger) EvalIdle(controller.Temporal) (param.Value, error) {
	for {
		n := t.pending.Load()
		if n <= 0 {
			return param.Bool(false), nil
		}
		if t.pending.CompareAndSwap(n, n-1) {
			return param.Bool(true), nil
		}
	}
}

func (t *Trigger) Describe() string { return "go trigger" }

// #endregion trigger
