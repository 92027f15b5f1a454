package main

import (
	"log/slog"

	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/presentation"
	"github.com/visionegg/visionegg-sub000/internal/stimulus"
)

// #region headless
type headlessScreen struct{ clears int }

func (s *headlessScreen) Clear() { s.clears++ }

// gratingViewport samples the grating luminance at its centre instead of
// rasterising it, so the daemon runs without a display.
type gratingViewport struct {
	screen *headlessScreen
	target *param.Container
	clock  presentation.Clock
	draws  int
	sample float64
}

func (v *gratingViewport) Screen() presentation.Screen { return v.screen }

func (v *gratingViewport) Draw() {
	v.draws++
	v.sample = stimulus.Luminance(v.target, v.clock.Now())
	if v.draws%600 == 0 {
		slog.Debug("grating", "draws", v.draws, "luminance", v.sample, "orientation", v.target.Float("orientation"))
	}
}

// #endregion headless
