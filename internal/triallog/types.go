package triallog

import (
	"time"

	"github.com/visionegg/visionegg-sub000/internal/presentation"
	"github.com/visionegg/visionegg-sub000/internal/remote"
	"github.com/visionegg/visionegg-sub000/internal/timing"
)

// #region trial-record
// TrialRecord is one stored trial.
type TrialRecord struct {
	TrialID          string
	StartedAt        time.Time
	DurationValue    float64
	DurationUnit     string
	Frames           int
	ElapsedSec       float64
	MeasuredFPS      float64
	FrameControllers int
	Offline          bool
	FramesDropped    bool
	Anomalies        []timing.Anomaly
	StatsJSON        string
	CreatedAt        time.Time
}

// Severity returns the worst anomaly severity, or "" for a clean trial.
func (r TrialRecord) Severity() string {
	worst := ""
	for _, a := range r.Anomalies {
		if a.Severity == timing.SeverityError {
			return string(timing.SeverityError)
		}
		worst = string(a.Severity)
	}
	return worst
}

// NewTrialRecord converts a presentation report. The ID is assigned by RecordTrial.
func NewTrialRecord(rep presentation.TrialReport) TrialRecord {
	return TrialRecord{
		StartedAt:        rep.StartedAt,
		DurationValue:    rep.Duration.Value,
		DurationUnit:     string(rep.Duration.Unit),
		Frames:           rep.Frames,
		ElapsedSec:       rep.Elapsed,
		MeasuredFPS:      rep.MeasuredFPS,
		FrameControllers: rep.FrameControllers,
		Offline:          rep.Offline,
		FramesDropped:    rep.FramesDropped,
		Anomalies:        rep.Anomalies,
		StatsJSON:        statsJSON(rep.Stats),
	}
}

// #endregion trial-record

// #region swap-entry
// SwapEntry is one row of the swap log: a remote replacement attempt.
type SwapEntry struct {
	ID       int64
	Name     string
	Command  string
	Origin   string
	Accepted bool
	Reason   string
	At       time.Time
}

// NewSwapEntry converts a registry swap event.
func NewSwapEntry(ev remote.SwapEvent) SwapEntry {
	return SwapEntry{
		Name:     ev.Name,
		Command:  ev.Command,
		Origin:   ev.Origin,
		Accepted: ev.Accepted,
		Reason:   ev.Reason,
		At:       ev.At,
	}
}

// #endregion swap-entry
