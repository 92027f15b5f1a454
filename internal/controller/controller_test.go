package controller

import (
	"math"
	"strings"
	"testing"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

func TestConstantIdleDefaultsToActive(t *testing.T) {
	c, err := NewConstant(param.Float(2.5), param.Unset, Options{})
	if err != nil {
		t.Fatalf("NewConstant: %v", err)
	}
	v, _ := c.EvalIdle(Idle(0))
	if v.AsFloat() != 2.5 {
		t.Fatalf("idle = %v, want 2.5", v)
	}
	if c.TemporalKind() != TimeSecSinceGo || c.Cadence() != EveryFrame {
		t.Fatalf("defaults: %s %s", c.TemporalKind(), c.Cadence())
	}
}

func TestConstantPhases(t *testing.T) {
	c := MustConstant(param.Float(1), param.Float(0), Options{Cadence: Transitions})
	a, _ := c.EvalActive(Active(0, 0, 0))
	i, _ := c.EvalIdle(Idle(0))
	if a.AsFloat() != 1 || i.AsFloat() != 0 {
		t.Fatalf("active=%v idle=%v", a, i)
	}
}

func TestConstantKindChecked(t *testing.T) {
	_, err := NewConstant(param.Float(1), param.String("x"), Options{})
	if err == nil {
		t.Fatal("expected error for idle kind mismatch")
	}
	c, err := NewConstant(param.Int(1), param.Int(0), Options{ReturnKind: param.KindFloat})
	if err != nil {
		t.Fatalf("int literal should widen to declared float: %v", err)
	}
	if v, _ := c.EvalActive(Active(0, 0, 0)); v.Kind() != param.KindFloat {
		t.Fatalf("kind = %s", v.Kind())
	}
}

func TestConstantDescribe(t *testing.T) {
	c := MustConstant(param.Float(1), param.Float(0), Options{})
	want := "const(1.0, 0.0, float, TIME_SEC_SINCE_GO, EVERY_FRAME)"
	if got := c.Describe(); got != want {
		t.Fatalf("Describe = %q, want %q", got, want)
	}
}

func TestFormulaSinceGo(t *testing.T) {
	f, err := NewFormula("t * 2", "", Options{})
	if err != nil {
		t.Fatalf("NewFormula: %v", err)
	}
	if f.ReturnKind() != param.KindFloat {
		t.Fatalf("inferred %s, want float", f.ReturnKind())
	}
	v, err := f.EvalActive(Active(100, 1.5, 90))
	if err != nil {
		t.Fatalf("EvalActive: %v", err)
	}
	if v.AsFloat() != 3 {
		t.Fatalf("t*2 at 1.5 = %v", v)
	}
}

func TestFormulaFrames(t *testing.T) {
	f, err := NewFormula("f % 2 == 0", "false", Options{Temporal: FramesSinceGo})
	if err != nil {
		t.Fatalf("NewFormula: %v", err)
	}
	if f.ReturnKind() != param.KindBool {
		t.Fatalf("inferred %s, want bool", f.ReturnKind())
	}
	v, _ := f.EvalActive(Active(0, 0, 4))
	if !v.AsBool() {
		t.Fatal("frame 4 should be even")
	}
	v, _ = f.EvalIdle(Idle(0))
	if v.AsBool() {
		t.Fatal("idle expression should be false")
	}
}

func TestFormulaMathNamespace(t *testing.T) {
	f, err := NewFormula("sin(t_abs * pi / 2)", "", Options{Temporal: TimeSecAbsolute})
	if err != nil {
		t.Fatalf("NewFormula: %v", err)
	}
	v, _ := f.EvalActive(Active(1, 0, 0))
	if math.Abs(v.AsFloat()-1) > 1e-12 {
		t.Fatalf("sin(pi/2) = %v", v)
	}
}

func TestFormulaVector(t *testing.T) {
	f, err := NewFormula("vec(t, 2 * t)", "", Options{})
	if err != nil {
		t.Fatalf("NewFormula: %v", err)
	}
	v, _ := f.EvalActive(Active(0, 2, 0))
	if !v.Equal(param.Vec(2, 4)) {
		t.Fatalf("got %v", v)
	}
}

func TestFormulaDeclaredKindWidens(t *testing.T) {
	f, err := NewFormula("1", "0", Options{ReturnKind: param.KindFloat})
	if err != nil {
		t.Fatalf("NewFormula: %v", err)
	}
	v, _ := f.EvalActive(Active(0, 0, 0))
	if v.Kind() != param.KindFloat || v.AsFloat() != 1 {
		t.Fatalf("got %v", v)
	}
}

func TestFormulaErrorsNameExpression(t *testing.T) {
	_, err := NewFormula("t +* 2", "", Options{})
	if err == nil || !strings.Contains(err.Error(), "t +* 2") {
		t.Fatalf("expected compile error naming the expression, got %v", err)
	}
	// the variable for absolute time is t_abs, not t
	if _, err := NewFormula("t * 2", "", Options{Temporal: TimeSecAbsolute}); err == nil {
		t.Fatal("expected error for unknown variable")
	}
	if _, err := NewFormula(`"abc"`, "", Options{ReturnKind: param.KindFloat}); err == nil {
		t.Fatal("expected error for string result with declared float")
	}
}

func TestFuncInfersKind(t *testing.T) {
	fn, err := NewFunc(func(t Temporal) param.Value {
		return param.Float(t.SinceGo * 10)
	}, nil, Options{})
	if err != nil {
		t.Fatalf("NewFunc: %v", err)
	}
	if fn.ReturnKind() != param.KindFloat {
		t.Fatalf("kind = %s", fn.ReturnKind())
	}
	v, _ := fn.EvalActive(Active(0, 0.5, 30))
	if v.AsFloat() != 5 {
		t.Fatalf("got %v", v)
	}
}

func TestParseKinds(t *testing.T) {
	k, err := ParseTemporalKind("Controller.FRAMES_SINCE_GO")
	if err != nil || k != FramesSinceGo {
		t.Fatalf("ParseTemporalKind = %v, %v", k, err)
	}
	c, err := ParseCadence("NOW_THEN_TRANSITIONS")
	if err != nil || c != NowThenTransitions {
		t.Fatalf("ParseCadence = %v, %v", c, err)
	}
	if _, err := ParseCadence("SOMETIMES"); err == nil {
		t.Fatal("expected error")
	}
}

func TestScriptAssignments(t *testing.T) {
	s, err := NewScript("a = t * 2; x = a + 1", "x = -1", Options{})
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	v, err := s.EvalActive(Active(0, 0.5, 30))
	if err != nil {
		t.Fatalf("EvalActive: %v", err)
	}
	if v.AsFloat() != 2 {
		t.Fatalf("active = %v, want 2", v)
	}
	v, _ = s.EvalIdle(Idle(0))
	if v.AsFloat() != -1 {
		t.Fatalf("idle = %v, want -1", v)
	}
	if !strings.HasPrefix(Describe(s), "exec_str(") {
		t.Fatalf("describe = %q", Describe(s))
	}
}

func TestScriptExpr(t *testing.T) {
	got, err := ScriptExpr("a = f\nx = a * 2")
	if err != nil {
		t.Fatalf("ScriptExpr: %v", err)
	}
	if got != "let a = f; let x = a * 2; x" {
		t.Fatalf("got %q", got)
	}

	bad := []string{
		"y = t",
		"x == t",
		"t * 2",
		"x = t; x = 2",
	}
	for _, src := range bad {
		if _, err := ScriptExpr(src); err == nil {
			t.Errorf("ScriptExpr(%q) should fail", src)
		}
	}
}
