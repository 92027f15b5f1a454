package controller

import (
	"fmt"
	"regexp"
	"strings"
)

// #region script
// Script runs a sequence of assignments and returns the value left in x:
//
//	a = t*2; x = a + 1
//
// Each statement becomes an expr let binding, so a script is a Formula with
// named intermediates.
type Script struct {
	*Formula
	activeSrc string
	idleSrc   string
}

var assignment = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)

// NewScript translates both scripts and compiles them as a Formula. An empty
// idle script repeats the active one.
func NewScript(active, idle string, opts Options) (*Script, error) {
	activeExpr, err := ScriptExpr(active)
	if err != nil {
		return nil, err
	}
	idleExpr := ""
	if idle != "" {
		if idleExpr, err = ScriptExpr(idle); err != nil {
			return nil, err
		}
	}
	f, err := NewFormula(activeExpr, idleExpr, opts)
	if err != nil {
		return nil, err
	}
	if idle == "" {
		idle = active
	}
	return &Script{Formula: f, activeSrc: active, idleSrc: idle}, nil
}

func (s *Script) Describe() string {
	return fmt.Sprintf("exec_str(%q, %q, %s, %s, %s)", s.activeSrc, s.idleSrc, s.kind, s.temporal, s.cadence)
}

// ScriptExpr rewrites "a = ...; x = ..." into "let a = ...; let x = ...; x".
// Statements are separated by ';' or newlines. x must be assigned, and no name
// may be assigned twice.
func ScriptExpr(src string) (string, error) {
	var b strings.Builder
	seen := make(map[string]bool)
	stmts := strings.FieldsFunc(src, func(r rune) bool { return r == ';' || r == '\n' })
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		m := assignment.FindStringSubmatch(stmt)
		if m == nil {
			return "", fmt.Errorf("script %q: %q is not an assignment", src, stmt)
		}
		name, rhs := m[1], strings.TrimSpace(m[2])
		if seen[name] {
			return "", fmt.Errorf("script %q: %s assigned more than once", src, name)
		}
		seen[name] = true
		fmt.Fprintf(&b, "let %s = %s; ", name, rhs)
	}
	if !seen["x"] {
		return "", fmt.Errorf("script %q: x is not defined", src)
	}
	b.WriteString("x")
	return b.String(), nil
}

// #endregion script
