package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/visionegg/visionegg-sub000/internal/replay"
	"github.com/visionegg/visionegg-sub000/internal/stimulus"
	"github.com/visionegg/visionegg-sub000/internal/triallog"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to stimd.db")
	last := flag.Int("last", 20, "number of most recent swaps to export")
	name := flag.String("name", "", "export swaps of one remote name only")
	frames := flag.Int("frames", 60, "frames in the trial run after the swaps")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/stimd.db --out path/to/fixture.json [--last N] [--name n] [--frames N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *name, *last, *frames, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, name string, last, frames int, outPath string) error {
	store, err := triallog.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	swaps, err := store.ListSwaps(name)
	if err != nil {
		return err
	}
	if last > 0 && len(swaps) > last {
		swaps = swaps[len(swaps)-last:]
	}
	if len(swaps) == 0 {
		return fmt.Errorf("no swaps found")
	}
	fmt.Printf("Found %d swaps\n", len(swaps))

	fixture, err := buildFixture(swaps, frames)
	if err != nil {
		return err
	}
	return writeFixture(fixture, outPath)
}

// #endregion extract

// #region output

// buildFixture replays the swaps against the stimd grating. Only parse and type
// failures reach the swap log, so rejected swaps expect a protocol error again.
// No drawn values are asserted.
func buildFixture(swaps []triallog.SwapEntry, frames int) (replay.Fixture, error) {
	grating, err := stimulus.NewGrating(nil)
	if err != nil {
		return replay.Fixture{}, err
	}
	fields := replay.FieldsOf(grating)
	bindings := make([]replay.FixtureBinding, len(fields))
	for i, f := range fields {
		bindings[i] = replay.FixtureBinding{Name: f.Name, Hold: true}
	}

	steps := make([]replay.FixtureStep, 0, len(swaps)+1)
	for _, s := range swaps {
		step := replay.FixtureStep{Op: "submit", Name: s.Name, Line: s.Command}
		if !s.Accepted {
			step.ExpectError = "protocol"
		}
		steps = append(steps, step)
	}
	steps = append(steps, replay.FixtureStep{Op: "trial", Duration: float64(frames), Unit: "frames"})

	return replay.Fixture{
		Description: fmt.Sprintf("Session export: %d swaps from %s to %s", len(swaps),
			swaps[0].At.Format("2006-01-02T15:04:05Z"), swaps[len(swaps)-1].At.Format("2006-01-02T15:04:05Z")),
		Fields:   fields,
		Bindings: bindings,
		Steps:    steps,
	}, nil
}

func writeFixture(f replay.Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("Wrote %s (%d steps)\n", path, len(f.Steps))
	return nil
}

// #endregion output
