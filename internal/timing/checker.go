package timing

import (
	"fmt"
	"math"
)

// #region checker
// Checker validates the measured frame rate of a finished trial.
type Checker struct {
	config Config
}

// NewChecker creates a checker with the given thresholds. A zero
// LongestFrameFactor takes the default.
func NewChecker(config Config) *Checker {
	if config.LongestFrameFactor == 0 {
		config.LongestFrameFactor = DefaultConfig().LongestFrameFactor
	}
	return &Checker{config: config}
}

// Config returns the thresholds in use.
func (c *Checker) Config() Config {
	return c.config
}

// Evaluate computes the measured rate from frames/elapsed and returns the anomalies found.
// frameControllers is the number of bound controllers driven by frame counts; the
// implausible-rate error only applies when at least one is bound. A trial without
// frames measures 0 fps.
func (c *Checker) Evaluate(frames int, elapsed float64, frameControllers int) Result {
	res := Result{Frames: frames, Elapsed: elapsed}
	switch {
	case frames == 0:
		res.MeasuredFPS = 0
	case elapsed <= 0:
		res.MeasuredFPS = math.Inf(1)
	default:
		res.MeasuredFPS = float64(frames) / elapsed
	}

	if frameControllers > 0 && res.MeasuredFPS > c.config.ImplausibleFPS {
		res.Anomalies = append(res.Anomalies, Anomaly{
			Type:     AnomalyImplausibleRate,
			Severity: SeverityError,
			Reason: fmt.Sprintf(
				"calculated frames per second was %.3f, which exceeds the maximum plausible %.1f; "+
					"buffer swaps are not synchronized to vertical retrace, so %d frame-based controller(s) ran at the wrong rate",
				res.MeasuredFPS, c.config.ImplausibleFPS, frameControllers),
		})
	}

	if c.config.RefreshHz > 0 {
		deviation := math.Abs(res.MeasuredFPS-c.config.RefreshHz) / c.config.RefreshHz
		if deviation > c.config.Tolerance {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Type:     AnomalyRateDeviation,
				Severity: SeverityWarning,
				Reason: fmt.Sprintf(
					"calculated frames per second was %.3f, while the monitor refresh is set to %.3f Hz (deviation %.1f%%, tolerance %.1f%%)",
					res.MeasuredFPS, c.config.RefreshHz, deviation*100, c.config.Tolerance*100),
			})
		}
	}
	return res
}

// LongestFrame reports a dropped frame when the longest inter-frame interval
// reaches LongestFrameFactor refresh periods.
func (c *Checker) LongestFrame(st Stats) (Anomaly, bool) {
	if st.Frames < 2 || c.config.RefreshHz <= 0 {
		return Anomaly{}, false
	}
	period := 1 / c.config.RefreshHz
	if st.MaxInterval < c.config.LongestFrameFactor*period {
		return Anomaly{}, false
	}
	return Anomaly{
		Type:     AnomalyFrameDropped,
		Severity: SeverityWarning,
		Reason: fmt.Sprintf(
			"one or more frames took %.1f msec, which is significantly longer than the expected inter-frame interval of %.1f msec for %.1f Hz",
			st.MaxInterval*1000, period*1000, c.config.RefreshHz),
	}, true
}

// #endregion checker
