package message

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// #region level
// Level orders message severities.
type Level int

const (
	Trivial Level = iota
	Info
	Nag
	Deprecation
	Warning
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Trivial:
		return "TRIVIAL"
	case Info:
		return "INFO"
	case Nag:
		return "NAG"
	case Deprecation:
		return "DEPRECATION"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL%d", int(l))
}

// ParseLevel maps a level name (case-sensitive, upper case) to a Level.
func ParseLevel(s string) (Level, error) {
	for l := Trivial; l <= Fatal; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return Info, fmt.Errorf("unknown message level %q", s)
}

// #endregion level

// #region sink
// Sink receives user-facing messages from the engine.
type Sink interface {
	Add(level Level, text string)
}

// Logger is the slog-backed Sink. Messages below the print threshold are dropped;
// Fatal messages are logged and then terminate through the exit function.
type Logger struct {
	logger    *slog.Logger
	threshold Level
	exit      func(int)
}

// NewLogger creates a Logger writing to logger (slog.Default when nil).
func NewLogger(logger *slog.Logger, threshold Level) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, threshold: threshold, exit: os.Exit}
}

// WithExit replaces the function called after a Fatal message.
func (l *Logger) WithExit(exit func(int)) *Logger {
	l.exit = exit
	return l
}

// Add logs text at the slog level matching level.
func (l *Logger) Add(level Level, text string) {
	if level < l.threshold && level != Fatal {
		return
	}
	l.logger.Log(context.Background(), slogLevel(level), text, "vision_level", level.String())
	if level == Fatal {
		l.exit(1)
	}
}

func slogLevel(level Level) slog.Level {
	switch {
	case level >= Error:
		return slog.LevelError
	case level >= Nag:
		return slog.LevelWarn
	case level == Info:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// Format renders a message the way it is printed on consoles.
func Format(level Level, text string) string {
	return fmt.Sprintf("VisionEgg %s message: %s", level, text)
}

// #endregion sink

// #region recorder
// Entry is one recorded message.
type Entry struct {
	Level Level
	Text  string
}

// Recorder is a Sink that keeps every message in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Add(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Text: text})
}

// Entries returns a copy of the recorded messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// AtLevel returns the recorded messages with exactly the given level.
func (r *Recorder) AtLevel(level Level) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets every recorded message.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// #endregion recorder

// #region discard
// Discard drops every message.
var Discard Sink = discard{}

type discard struct{}

func (discard) Add(Level, string) {}

// #endregion discard
