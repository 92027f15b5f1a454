package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/visionegg/visionegg-sub000/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	jsonOut := flag.Bool("json", false, "output results as JSON instead of table")
	verbose := flag.Bool("v", false, "print drawn values for failing steps")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--json] [-v]")
		os.Exit(2)
	}
	os.Exit(runFixture(*fixturePath, *jsonOut, *verbose))
}

// #endregion main

// #region fixture-mode

type stepRow struct {
	Index      int      `json:"index"`
	Op         string   `json:"op"`
	Frames     int      `json:"frames"`
	Pass       bool     `json:"pass"`
	Err        string   `json:"error,omitempty"`
	Mismatches []string `json:"mismatches,omitempty"`
}

func runFixture(path string, jsonOut, verbose bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results, err := replay.Run(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	summary := replay.Summarize(results)

	if jsonOut {
		rows := make([]stepRow, len(results))
		for i, r := range results {
			rows[i] = stepRow{Index: r.Index, Op: r.Op, Frames: r.Frames, Pass: r.Pass, Err: r.Err, Mismatches: r.Mismatches}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"fixture": path, "steps": rows, "summary": summary}); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			return 2
		}
	} else {
		printTable(f, results, verbose)
		fmt.Printf("\nSummary: %d steps, %d pass, %d fail, %d frames, %d submits (%d rejected)\n",
			summary.TotalSteps, summary.Passed, summary.Failed, summary.Frames, summary.Submits, summary.Rejected)
	}

	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func printTable(f *replay.Fixture, results []replay.StepResult, verbose bool) {
	if f.Description != "" {
		fmt.Println(f.Description)
		fmt.Println()
	}
	fmt.Printf("%-6s| %-8s| %-7s| %s\n", "Step", "Op", "Frames", "Result")
	fmt.Printf("%-6s+%-9s+%-8s+%s\n",
		strings.Repeat("-", 6), strings.Repeat("-", 9), strings.Repeat("-", 8), strings.Repeat("-", 20))

	for _, r := range results {
		result := "PASS"
		if !r.Pass {
			result = "FAIL"
		}
		if r.Err != "" {
			result += "  " + r.Err
		}
		fmt.Printf("%-6d| %-8s| %-7d| %s\n", r.Index, r.Op, r.Frames, result)
		for _, m := range r.Mismatches {
			fmt.Printf("%-6s| %-8s| %-7s|   %s\n", "", "", "", m)
		}
		if verbose && !r.Pass {
			for name, vals := range r.Values {
				parts := make([]string, len(vals))
				for i, v := range vals {
					parts[i] = v.String()
				}
				fmt.Printf("%-6s| %-8s| %-7s|   %s = [%s]\n", "", "", "", name, strings.Join(parts, ", "))
			}
		}
	}
}

// #endregion fixture-mode
