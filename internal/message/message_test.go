package message

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoggerThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Warning)
	l.Add(Info, "not shown")
	if buf.Len() != 0 {
		t.Fatalf("info below threshold was logged: %s", buf.String())
	}
	l.Add(Error, "frame rate implausible")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["level"] != "ERROR" || rec["msg"] != "frame rate implausible" || rec["vision_level"] != "ERROR" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLoggerFatalExits(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)), Error).WithExit(func(c int) { code = c })
	l.Add(Fatal, "cannot continue")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Add(Warning, "a")
	r.Add(Info, "b")
	r.Add(Warning, "c")
	if got := r.AtLevel(Warning); len(got) != 2 || got[1].Text != "c" {
		t.Fatalf("AtLevel = %v", got)
	}
	r.Reset()
	if len(r.Entries()) != 0 {
		t.Fatal("Reset should clear entries")
	}
}

func TestFormatAndParse(t *testing.T) {
	if got := Format(Warning, "x"); got != "VisionEgg WARNING message: x" {
		t.Fatalf("Format = %q", got)
	}
	l, err := ParseLevel("NAG")
	if err != nil || l != Nag {
		t.Fatalf("ParseLevel = %v, %v", l, err)
	}
}
