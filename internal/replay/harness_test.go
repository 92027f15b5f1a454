package replay

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/visionegg/visionegg-sub000/internal/param"
	"github.com/visionegg/visionegg-sub000/internal/stimulus"
)

// #region fixture-tests
// TestFixture_HotSwap runs the hot_swap fixture and checks every step passes.
func TestFixture_HotSwap(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "hot_swap.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	results, err := Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(f.Steps) {
		t.Fatalf("expected %d results, got %d", len(f.Steps), len(results))
	}
	for _, r := range results {
		if !r.Pass {
			t.Errorf("step %d (%s) failed: err=%q mismatches=%v", r.Index, r.Op, r.Err, r.Mismatches)
		}
	}

	s := Summarize(results)
	if s.Passed != len(results) || s.Failed != 0 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Submits != 2 || s.Rejected != 1 {
		t.Fatalf("submits=%d rejected=%d", s.Submits, s.Rejected)
	}
	if s.Frames != 9+2+4+1 {
		t.Fatalf("frames = %d", s.Frames)
	}
	if !strings.HasPrefix(results[2].Err, "Error parsing command for angle:") {
		t.Fatalf("rejection = %q", results[2].Err)
	}
}

// #endregion fixture-tests

// #region harness-tests
func TestRunReportsMismatch(t *testing.T) {
	f := &Fixture{
		Fields:   []FixtureField{{Name: "angle", Default: 0.0}},
		Bindings: []FixtureBinding{{Name: "angle"}},
		Steps: []FixtureStep{
			{Op: "trial", Duration: 2, Unit: "frames", Expect: map[string][]any{"angle": {1.0, 5.0}}},
			{Op: "trial", Duration: 2, Unit: "frames", Expect: map[string][]any{"angle": {1.0}}},
		},
	}
	results, err := Run(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Pass || len(results[0].Mismatches) != 1 {
		t.Fatalf("step 0 = %+v", results[0])
	}
	if !strings.Contains(results[1].Mismatches[0], "2 frames drawn, want 1") {
		t.Fatalf("step 1 = %v", results[1].Mismatches)
	}
}

func TestRunNonFloatBinding(t *testing.T) {
	f := &Fixture{
		Fields: []FixtureField{{Name: "label", Default: "a"}, {Name: "mask", Kind: "vec"}},
		Bindings: []FixtureBinding{
			{Name: "label", Initial: "const('go', 'wait', str, TIME_SEC_SINCE_GO, TRANSITIONS)"},
			{Name: "mask", Initial: "const([1, 2], [0, 0], vec, TIME_SEC_SINCE_GO, EVERY_FRAME)"},
		},
		Steps: []FixtureStep{
			{Op: "trial", Duration: 2, Unit: "frames", Expect: map[string][]any{
				"label": {"go", "go"},
				"mask":  {[]any{1.0, 2.0}, []any{1.0, 2.0}},
			}},
			{Op: "idle", Cycles: 1, Expect: map[string][]any{"label": {"wait"}, "mask": {[]any{0.0, 0.0}}}},
		},
	}
	results, err := Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range results {
		if !r.Pass {
			t.Errorf("step %d: err=%q mismatches=%v", r.Index, r.Err, r.Mismatches)
		}
	}
}

func TestRunRejectsBadFixture(t *testing.T) {
	bad := []*Fixture{
		{Fields: []FixtureField{{Name: "mask"}}},
		{Fields: []FixtureField{{Name: "angle", Default: 0.0}}, Bindings: []FixtureBinding{{Name: "phase"}}},
		{Fields: []FixtureField{{Name: "angle", Default: 0.0}}, Steps: []FixtureStep{{Op: "dance"}}},
	}
	for i, f := range bad {
		if _, err := Run(context.Background(), f); err == nil {
			t.Errorf("fixture %d: expected error", i)
		}
	}
}

func TestFieldsOfRoundTrip(t *testing.T) {
	g, err := stimulus.NewGrating(nil)
	if err != nil {
		t.Fatal(err)
	}
	fields := FieldsOf(g)
	bindings := make([]FixtureBinding, len(fields))
	for i, f := range fields {
		bindings[i] = FixtureBinding{Name: f.Name, Hold: true}
	}
	data, err := json.Marshal(Fixture{
		Fields:   fields,
		Bindings: bindings,
		Steps: []FixtureStep{
			{Op: "submit", Name: "contrast", Line: "const(0.25, 0.0, float, TIME_SEC_SINCE_GO, EVERY_FRAME)"},
			{Op: "trial", Duration: 1, Unit: "frames", Expect: map[string][]any{
				"contrast": {0.25},
				"on":       {true},
				"position": {[]any{320.0, 240.0}},
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatal(err)
	}
	results, err := Run(context.Background(), &f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range results {
		if !r.Pass {
			t.Errorf("step %d: err=%q mismatches=%v", r.Index, r.Err, r.Mismatches)
		}
	}
}

func TestIntDefaultFromJSON(t *testing.T) {
	field, err := FixtureField{Name: "n", Default: 3.0, Kind: "int"}.toField()
	if err != nil {
		t.Fatal(err)
	}
	if field.Kind != param.KindInt || field.Default.AsInt() != 3 {
		t.Fatalf("field = %+v", field)
	}
}

func TestMatches(t *testing.T) {
	if !matches(2.0, param.Int(2)) {
		t.Error("float literal should match int value")
	}
	if matches(true, param.Float(1)) {
		t.Error("bool literal should not match float value")
	}
	if !matches(nil, param.Value{}) {
		t.Error("null should match unset")
	}
}

// #endregion harness-tests
