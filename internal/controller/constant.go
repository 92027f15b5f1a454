package controller

import (
	"fmt"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region constant
// Constant returns one value during trials and another between them.
type Constant struct {
	meta
	active param.Value
	idle   param.Value
}

// NewConstant builds a constant controller. An Unset idle value repeats active.
func NewConstant(active, idle param.Value, opts Options) (*Constant, error) {
	if active.IsUnset() {
		return nil, fmt.Errorf("new constant: active value unset")
	}
	if idle.IsUnset() {
		idle = active
	}
	m, err := newMeta(opts, active.Kind())
	if err != nil {
		return nil, fmt.Errorf("new constant: %w", err)
	}
	c := &Constant{meta: m}
	if c.active, err = m.coerce(active); err != nil {
		return nil, fmt.Errorf("new constant active: %w", err)
	}
	if c.idle, err = m.coerce(idle); err != nil {
		return nil, fmt.Errorf("new constant idle: %w", err)
	}
	return c, nil
}

// MustConstant is NewConstant for literals known to be valid.
func MustConstant(active, idle param.Value, opts Options) *Constant {
	c, err := NewConstant(active, idle, opts)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Constant) EvalActive(Temporal) (param.Value, error) { return c.active, nil }
func (c *Constant) EvalIdle(Temporal) (param.Value, error) { return c.idle, nil }

func (c *Constant) Describe() string {
	return fmt.Sprintf("const(%s, %s, %s, %s, %s)", c.active, c.idle, c.kind, c.temporal, c.cadence)
}

// #endregion constant
