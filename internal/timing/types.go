package timing

// #region anomaly-type
// AnomalyType enumerates post-trial frame-rate findings.
type AnomalyType string

const (
	// AnomalyImplausibleRate: frames were counted faster than any display refreshes,
	// so buffer swaps were not waiting for vertical retrace.
	AnomalyImplausibleRate AnomalyType = "implausible_rate"
	// AnomalyRateDeviation: the measured rate differs from the configured refresh.
	AnomalyRateDeviation AnomalyType = "rate_deviation"
	// AnomalyFrameDropped: at least one frame took several refresh periods.
	AnomalyFrameDropped AnomalyType = "frame_dropped"
)

// Severity is the message level an anomaly is reported at.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// #endregion anomaly-type

// #region anomaly
// Anomaly is one finding of the post-trial check. Anomalies are reported, never fatal.
type Anomaly struct {
	Type     AnomalyType `json:"type"`
	Severity Severity    `json:"severity"`
	Reason   string      `json:"reason"`
}

// #endregion anomaly

// #region config
// Config holds the thresholds for post-trial frame-rate validation.
type Config struct {
	RefreshHz          float64 // nominal monitor refresh rate
	ImplausibleFPS     float64 // error above this rate when frame-driven controllers are bound
	Tolerance          float64 // warn when |measured-refresh|/refresh exceeds this
	LongestFrameFactor float64 // warn when a frame lasts this many refresh periods
}

// DefaultConfig returns the standard thresholds for a 60 Hz display.
func DefaultConfig() Config {
	return Config{
		RefreshHz:          60.0,
		ImplausibleFPS:     210.0,
		Tolerance:          0.10,
		LongestFrameFactor: 2.0,
	}
}

// #endregion config

// #region result
// Result is the output of a post-trial check.
type Result struct {
	Frames      int       `json:"frames"`
	Elapsed     float64   `json:"elapsed_sec"`
	MeasuredFPS float64   `json:"measured_fps"`
	Anomalies   []Anomaly `json:"anomalies,omitempty"`
}

// #endregion result

// #region stats
// Stats summarizes inter-frame intervals of one timed trial.
type Stats struct {
	Frames        int     `json:"frames"`
	MeanInterval  float64 `json:"mean_interval_sec"`
	MaxInterval   float64 `json:"max_interval_sec"`
	MinInterval   float64 `json:"min_interval_sec"`
	MeanFPS       float64 `json:"mean_fps"`
	FPSStdDev     float64 `json:"fps_stddev"`
	JitterMean    float64 `json:"jitter_mean_sec"`
	JitterMax     float64 `json:"jitter_max_sec"`
	Histogram     []int   `json:"histogram"`
	BinWidthMsec  float64 `json:"bin_width_msec"`
	OverflowCount int     `json:"overflow"` // intervals past the last bin, counted there too
}

// #endregion stats
