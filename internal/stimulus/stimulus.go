package stimulus

import (
	"fmt"
	"math"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/presentation"
	"github.com/visionegg/visionegg-sub000/internal/remote"
)

// #region schema
// Schema is the root of every stimulus.
var Schema = param.NewSchema("stimulus", []param.Field{
	param.F("on", param.Bool(true)),
}, nil)

// GratingSchema describes a drifting sinusoidal grating.
var GratingSchema = Schema.Extend("sin_grating", []param.Field{
	param.F("contrast", param.Float(1.0)),
	param.F("orientation", param.Float(0.0)),
	param.F("spatial_freq", param.Float(0.0372)),
	param.F("temporal_freq_hz", param.Float(5.0)),
	param.F("phase_at_t0", param.Float(0.0)),
	param.F("pedestal", param.Float(0.5)),
	param.F("position", param.Vec(320, 240)),
	param.F("size", param.Vec(64, 64)),
}, []param.Field{
	param.F("num_samples", param.Int(512)),
})

// NewGrating creates grating parameters.
func NewGrating(overrides map[string]param.Value) (*param.Container, error) {
	return param.NewContainer(GratingSchema, overrides)
}

// Luminance samples the grating at its centre at time t.
func Luminance(g *param.Container, t float64) float64 {
	if !g.Bool("on") {
		return g.Float("pedestal")
	}
	phase := g.Float("phase_at_t0") + 360*g.Float("temporal_freq_hz")*t
	return g.Float("pedestal") * (1 + g.Float("contrast")*math.Sin(phase*math.Pi/180))
}

// #endregion schema

// #region expose
// Expose registers every mutable, set field of target under its own name and binds
// the proxy to it. Each proxy starts as a constant of the field's current value.
func Expose(reg *remote.Registry, p *presentation.Presentation, target *param.Container) ([]string, error) {
	var names []string
	for _, name := range target.Names() {
		if target.IsConstant(name) {
			continue
		}
		v := target.MustGet(name)
		if v.IsUnset() {
			continue
		}
		initial, err := controller.NewConstant(v, v, controller.Options{})
		if err != nil {
			return nil, fmt.Errorf("expose %s: %w", name, err)
		}
		proxy, err := reg.Register(name, initial, v.Kind())
		if err != nil {
			return nil, err
		}
		if err := p.Bind(target, name, proxy); err != nil {
			return nil, fmt.Errorf("expose %s: %w", name, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// #endregion expose
