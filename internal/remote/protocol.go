package remote

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/visionegg/visionegg-sub000/internal/controller"
	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region command
// CommandKind is the controller variant a protocol line asks for.
type CommandKind string

const (
	CommandConst   CommandKind = "const"
	CommandEvalStr CommandKind = "eval_str"
	CommandExecStr CommandKind = "exec_str"
)

// Command is a parsed replacement request:
//
//	const( <active>, <idle>, <type>, <temporal_kind>, <eval_cadence> )
//	eval_str( "<active expr>", "<idle expr>", <type>, <temporal_kind>, <eval_cadence> )
//	exec_str( "<active script>", "<idle script>", <type>, <temporal_kind>, <eval_cadence> )
type Command struct {
	Kind     CommandKind
	Active   string // literal text for const, unquoted source otherwise
	Idle     string
	Type     param.Kind
	Temporal controller.TemporalKind
	Cadence  controller.Cadence
}

// ProtocolError is reported to the connection that sent a malformed line.
// Its message is the exact response line.
type ProtocolError struct {
	Name string
	Text string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("Error parsing command for %s: %s", e.Name, e.Text)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrUnknownName is wrapped when a line names a controller that is not registered.
var ErrUnknownName = errors.New("no controller registered under that name")

// #endregion command

// #region parse
// ParseCommand parses the right-hand side of a "<name>=<command>" line.
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)
	var cmd Command
	switch {
	case strings.HasPrefix(text, string(CommandConst)):
		cmd.Kind = CommandConst
	case strings.HasPrefix(text, string(CommandEvalStr)):
		cmd.Kind = CommandEvalStr
	case strings.HasPrefix(text, string(CommandExecStr)):
		cmd.Kind = CommandExecStr
	default:
		return Command{}, fmt.Errorf("expected const(...), eval_str(...) or exec_str(...)")
	}
	rest := strings.TrimSpace(text[len(cmd.Kind):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return Command{}, fmt.Errorf("%s: missing parentheses", cmd.Kind)
	}
	args, err := splitArgs(rest[1 : len(rest)-1])
	if err != nil {
		return Command{}, fmt.Errorf("%s: %w", cmd.Kind, err)
	}
	if len(args) != 5 {
		return Command{}, fmt.Errorf("%s: want 5 arguments, got %d", cmd.Kind, len(args))
	}

	if cmd.Type, err = param.ParseKind(args[2]); err != nil {
		return Command{}, fmt.Errorf("%s: %w", cmd.Kind, err)
	}
	if cmd.Temporal, err = controller.ParseTemporalKind(args[3]); err != nil {
		return Command{}, fmt.Errorf("%s: %w", cmd.Kind, err)
	}
	if cmd.Cadence, err = controller.ParseCadence(args[4]); err != nil {
		return Command{}, fmt.Errorf("%s: %w", cmd.Kind, err)
	}

	if cmd.Kind == CommandConst {
		cmd.Active, cmd.Idle = args[0], args[1]
		return cmd, nil
	}
	if cmd.Active, err = unquote(args[0]); err != nil {
		return Command{}, fmt.Errorf("%s active: %w", cmd.Kind, err)
	}
	if args[1] == "None" {
		return cmd, nil
	}
	if cmd.Idle, err = unquote(args[1]); err != nil {
		return Command{}, fmt.Errorf("%s idle: %w", cmd.Kind, err)
	}
	return cmd, nil
}

// splitArgs splits on top-level commas, respecting quotes and brackets.
func splitArgs(s string) ([]string, error) {
	var args []string
	var quote byte
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[' || ch == '(':
			depth++
		case ch == ']' || ch == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", ch)
			}
		case ch == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(args) > 0 {
		args = append(args, last)
	}
	return args, nil
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = `"` + strings.ReplaceAll(s[1:len(s)-1], `"`, `\"`) + `"`
	}
	out, err := strconv.Unquote(s)
	if err != nil {
		return "", fmt.Errorf("expected quoted string, got %s", s)
	}
	return out, nil
}

// #endregion parse

// #region literal
// parseLiteral reads a const argument as a value of kind. "None" yields Unset.
func parseLiteral(s string, kind param.Kind) (param.Value, error) {
	s = strings.TrimSpace(s)
	if s == "None" {
		return param.Unset, nil
	}
	switch kind {
	case param.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return param.Value{}, fmt.Errorf("float literal %q", s)
		}
		return param.Float(f), nil
	case param.KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return param.Value{}, fmt.Errorf("int literal %q", s)
		}
		return param.Int(i), nil
	case param.KindBool:
		switch s {
		case "true", "True", "1":
			return param.Bool(true), nil
		case "false", "False", "0":
			return param.Bool(false), nil
		}
		return param.Value{}, fmt.Errorf("bool literal %q", s)
	case param.KindString:
		out, err := unquote(s)
		if err != nil {
			return param.Value{}, err
		}
		return param.String(out), nil
	case param.KindVec:
		if len(s) < 2 || !((s[0] == '[' && s[len(s)-1] == ']') || (s[0] == '(' && s[len(s)-1] == ')')) {
			return param.Value{}, fmt.Errorf("vector literal %q", s)
		}
		parts, err := splitArgs(s[1 : len(s)-1])
		if err != nil {
			return param.Value{}, err
		}
		xs := make([]float64, 0, len(parts))
		for _, p := range parts {
			if p == "" {
				continue
			}
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return param.Value{}, fmt.Errorf("vector element %q", p)
			}
			xs = append(xs, f)
		}
		return param.Vec(xs...), nil
	}
	return param.Value{}, fmt.Errorf("no literal syntax for %s", kind)
}

// #endregion literal

// #region build
// Build constructs the controller a command describes and checks that it returns
// a kind the target accepts. A require of KindInvalid skips the check.
func Build(cmd Command, require param.Kind) (controller.Controller, error) {
	opts := controller.Options{ReturnKind: cmd.Type, Temporal: cmd.Temporal, Cadence: cmd.Cadence}
	var c controller.Controller
	switch cmd.Kind {
	case CommandConst:
		active, err := parseLiteral(cmd.Active, cmd.Type)
		if err != nil {
			return nil, fmt.Errorf("const active: %w", err)
		}
		idle, err := parseLiteral(cmd.Idle, cmd.Type)
		if err != nil {
			return nil, fmt.Errorf("const idle: %w", err)
		}
		k, err := controller.NewConstant(active, idle, opts)
		if err != nil {
			return nil, err
		}
		c = k
	case CommandEvalStr:
		f, err := controller.NewFormula(cmd.Active, cmd.Idle, opts)
		if err != nil {
			return nil, err
		}
		c = f
	case CommandExecStr:
		sc, err := controller.NewScript(cmd.Active, cmd.Idle, opts)
		if err != nil {
			return nil, err
		}
		c = sc
	default:
		return nil, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
	if require != param.KindInvalid && !require.Accepts(c.ReturnKind()) {
		return nil, fmt.Errorf("new controller returned type %s, but should return type %s", c.ReturnKind(), require)
	}
	return c, nil
}

// #endregion build
