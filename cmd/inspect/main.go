package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/visionegg/visionegg-sub000/internal/timing"
	"github.com/visionegg/visionegg-sub000/internal/triallog"
)

// #region main

func main() {
	dbPath := flag.String("db", envOr("STIM_DB", ""), "path to stimd.db")
	last := flag.Int("last", 20, "show N most recent trials")
	trial := flag.String("trial", "", "show single trial detail")
	swaps := flag.Bool("swaps", false, "list remote controller swaps instead of trials")
	name := flag.String("name", "", "filter swaps to one remote name")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/stimd.db [--last N] [--trial id] [--swaps [--name n]] [--json]")
		os.Exit(2)
	}

	store, err := triallog.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *swaps:
		err = runSwapMode(store, *name, *jsonOut)
	case *trial != "":
		err = runDetailMode(store, *trial, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion main

// #region list-mode

type listRow struct {
	TrialID     string  `json:"trial_id"`
	Duration    string  `json:"duration"`
	Frames      int     `json:"frames"`
	ElapsedSec  float64 `json:"elapsed_sec"`
	MeasuredFPS float64 `json:"measured_fps"`
	Severity    string  `json:"severity,omitempty"`
	Offline     bool    `json:"offline"`
	StartedAt   string  `json:"started_at"`
}

func runListMode(store *triallog.Store, last int, jsonOut bool) error {
	trials, err := store.ListTrials(last)
	if err != nil {
		return err
	}
	if len(trials) == 0 {
		fmt.Fprintln(os.Stderr, "no trials found")
		return nil
	}

	// store returns newest first, print chronologically
	rows := make([]listRow, len(trials))
	for i, tr := range trials {
		rows[len(trials)-1-i] = listRow{
			TrialID:     tr.TrialID,
			Duration:    durationLabel(tr),
			Frames:      tr.Frames,
			ElapsedSec:  tr.ElapsedSec,
			MeasuredFPS: tr.MeasuredFPS,
			Severity:    tr.Severity(),
			Offline:     tr.Offline,
			StartedAt:   tr.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-14s  %7s  %9s  %8s  %-8s  %s\n",
		"Trial", "Duration", "Frames", "Elapsed", "FPS", "Status", "Started")
	fmt.Printf("%-12s+-%-14s+-%7s+-%9s+-%8s+-%-8s+-%s\n",
		"------------", "--------------", "-------", "---------", "--------", "--------", "--------------------")
	for _, r := range rows {
		status := "ok"
		if r.Severity != "" {
			status = r.Severity
		}
		if r.Offline {
			status = "offline"
		}
		fmt.Printf("%-12s  %-14s  %7d  %9.3f  %8.2f  %-8s  %s\n",
			shortID(r.TrialID), r.Duration, r.Frames, r.ElapsedSec, r.MeasuredFPS, status, r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	TrialID          string           `json:"trial_id"`
	StartedAt        string           `json:"started_at"`
	Duration         string           `json:"duration"`
	Frames           int              `json:"frames"`
	ElapsedSec       float64          `json:"elapsed_sec"`
	MeasuredFPS      float64          `json:"measured_fps"`
	FrameControllers int              `json:"frame_controllers"`
	Offline          bool             `json:"offline"`
	FramesDropped    bool             `json:"frames_dropped"`
	Anomalies        []timing.Anomaly `json:"anomalies,omitempty"`
	Stats            *timing.Stats    `json:"stats,omitempty"`
}

func runDetailMode(store *triallog.Store, trialID string, jsonOut bool) error {
	tr, err := store.GetTrial(trialID)
	if err != nil {
		return err
	}
	out := detailOutput{
		TrialID:          tr.TrialID,
		StartedAt:        tr.StartedAt.Format("2006-01-02T15:04:05.000Z"),
		Duration:         durationLabel(tr),
		Frames:           tr.Frames,
		ElapsedSec:       tr.ElapsedSec,
		MeasuredFPS:      tr.MeasuredFPS,
		FrameControllers: tr.FrameControllers,
		Offline:          tr.Offline,
		FramesDropped:    tr.FramesDropped,
		Anomalies:        tr.Anomalies,
	}
	if tr.StatsJSON != "" {
		var st timing.Stats
		if err := json.Unmarshal([]byte(tr.StatsJSON), &st); err == nil {
			out.Stats = &st
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Trial:             %s\n", out.TrialID)
	fmt.Printf("Started:           %s\n", out.StartedAt)
	fmt.Printf("Duration:          %s\n", out.Duration)
	fmt.Printf("Frames:            %d in %.3f s (%.2f fps)\n", out.Frames, out.ElapsedSec, out.MeasuredFPS)
	fmt.Printf("Frame controllers: %d\n", out.FrameControllers)
	if out.Offline {
		fmt.Println("Offline:           yes")
	}
	if out.FramesDropped {
		fmt.Println("Frames dropped:    yes")
	}
	if len(out.Anomalies) > 0 {
		fmt.Println("\nAnomalies:")
		for _, a := range out.Anomalies {
			fmt.Printf("  [%s] %s: %s\n", a.Severity, a.Type, a.Reason)
		}
	}
	if out.Stats != nil {
		fmt.Println()
		fmt.Print(out.Stats.Format())
	}
	return nil
}

// #endregion detail-mode

// #region swap-mode

func runSwapMode(store *triallog.Store, name string, jsonOut bool) error {
	swaps, err := store.ListSwaps(name)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(swaps)
	}
	if len(swaps) == 0 {
		fmt.Fprintln(os.Stderr, "no swaps found")
		return nil
	}

	fmt.Printf("%-24s  %-12s  %-8s  %-22s  %s\n", "Time", "Name", "Result", "Origin", "Command")
	for _, s := range swaps {
		result := "accepted"
		if !s.Accepted {
			result = "rejected"
		}
		fmt.Printf("%-24s  %-12s  %-8s  %-22s  %s\n",
			s.At.Format("2006-01-02T15:04:05.000Z"), s.Name, result, s.Origin, s.Command)
		if s.Reason != "" {
			fmt.Printf("%-24s  %s\n", "", s.Reason)
		}
	}
	return nil
}

// #endregion swap-mode

// #region helpers

func durationLabel(tr triallog.TrialRecord) string {
	if tr.DurationUnit == "forever" {
		return "forever"
	}
	return fmt.Sprintf("%g %s", tr.DurationValue, tr.DurationUnit)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
