package controller

import (
	"fmt"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region func
// Func wraps Go functions of the temporal snapshot.
type Func struct {
	meta
	active func(Temporal) param.Value
	idle   func(Temporal) param.Value
}

// NewFunc builds a function controller. A nil idle function repeats active.
// The return kind is inferred by calling active at time zero unless declared.
func NewFunc(active, idle func(Temporal) param.Value, opts Options) (*Func, error) {
	if active == nil {
		return nil, fmt.Errorf("new func: nil active function")
	}
	if idle == nil {
		idle = active
	}
	probe := active(Active(0, 0, 0))
	m, err := newMeta(opts, probe.Kind())
	if err != nil {
		return nil, fmt.Errorf("new func: %w", err)
	}
	if _, err := m.coerce(probe); err != nil {
		return nil, fmt.Errorf("new func: %w", err)
	}
	return &Func{meta: m, active: active, idle: idle}, nil
}

func (f *Func) EvalActive(t Temporal) (param.Value, error) { return f.coerce(f.active(t)) }
func (f *Func) EvalIdle(t Temporal) (param.Value, error) { return f.coerce(f.idle(t)) }

// #endregion func
