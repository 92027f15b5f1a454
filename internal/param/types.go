package param

import (
	"fmt"
	"strconv"
	"strings"
)

// #region kind
// Kind enumerates the closed set of value kinds a parameter can hold.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindVec
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "str",
	KindVec:     "vec",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a type name to a Kind. The older "types.FloatType" style names are accepted.
func ParseKind(name string) (Kind, error) {
	switch strings.TrimSpace(name) {
	case "bool", "types.BooleanType", "BooleanType":
		return KindBool, nil
	case "int", "types.IntType", "IntType":
		return KindInt, nil
	case "float", "types.FloatType", "FloatType":
		return KindFloat, nil
	case "str", "string", "types.StringType", "StringType":
		return KindString, nil
	case "vec", "tuple", "types.TupleType", "TupleType", "types.ListType", "ListType":
		return KindVec, nil
	}
	return KindInvalid, fmt.Errorf("unknown type name %q", name)
}

// Accepts reports whether a value of kind got may be stored in a field of kind k.
// Besides equal kinds, ints widen to floats and bools and ints alias each other.
func (k Kind) Accepts(got Kind) bool {
	if k == KindInvalid || got == KindInvalid {
		return false
	}
	if k == got {
		return true
	}
	switch {
	case k == KindFloat && got == KindInt:
		return true
	case k == KindBool && got == KindInt:
		return true
	case k == KindInt && got == KindBool:
		return true
	}
	return false
}

// #endregion kind

// #region value
// Value is an immutable tagged parameter value. The zero Value is Unset.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	v    []float64
}

// Unset marks an override whose default is resolved later by the owner.
var Unset = Value{}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }

// Vec copies its arguments so the returned Value stays immutable.
func Vec(xs ...float64) Value {
	out := make([]float64, len(xs))
	copy(out, xs)
	return Value{kind: KindVec, v: out}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsUnset() bool { return v.kind == KindInvalid }

// AsBool returns the value as a bool; ints are true when non-zero.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	}
	return false
}

// AsInt returns the value as an int; bools map to 0/1 and floats truncate.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// AsFloat returns the value as a float64.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
	}
	return 0
}

func (v Value) AsString() string { return v.s }

// AsVec returns a copy of the vector components.
func (v Value) AsVec() []float64 {
	out := make([]float64, len(v.v))
	copy(out, v.v)
	return out
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindVec:
		if len(v.v) != len(o.v) {
			return false
		}
		for i := range v.v {
			if v.v[i] != o.v[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return strconv.Quote(v.s)
	case KindVec:
		parts := make([]string, len(v.v))
		for i, x := range v.v {
			parts[i] = formatFloat(x)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "unset"
}

// Convert returns v re-tagged as kind k when k accepts v's kind.
func Convert(v Value, k Kind) (Value, bool) {
	if !k.Accepts(v.kind) {
		return Value{}, false
	}
	switch k {
	case v.kind:
		return v, true
	case KindFloat:
		return Float(v.AsFloat()), true
	case KindBool:
		return Bool(v.AsBool()), true
	case KindInt:
		return Int(v.AsInt()), true
	}
	return Value{}, false
}

// FromAny converts a dynamically typed result (from an expression or JSON) into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []float64:
		return Vec(t...), nil
	case []any:
		xs := make([]float64, len(t))
		for i, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			if !KindFloat.Accepts(ev.kind) {
				return Value{}, fmt.Errorf("vector element %d has kind %s", i, ev.kind)
			}
			xs[i] = ev.AsFloat()
		}
		return Vec(xs...), nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", x)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// #endregion value
