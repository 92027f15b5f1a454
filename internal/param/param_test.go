package param

import (
	"errors"
	"testing"
)

func gratingSchema() *Schema {
	base := NewSchema("stimulus",
		[]Field{F("on", Bool(true))},
		nil,
	)
	return base.Extend("grating",
		[]Field{
			F("contrast", Float(1.0)),
			F("orientation", Float(0.0)),
			F("position", Vec(320, 240)),
			{Name: "mask", Kind: KindString, Default: Unset},
		},
		[]Field{F("num_samples", Int(512))},
	)
}

func TestNewContainerDefaults(t *testing.T) {
	c, err := NewContainer(gratingSchema(), nil)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if !c.Bool("on") {
		t.Fatal("inherited default on should be true")
	}
	if c.Float("contrast") != 1.0 {
		t.Fatalf("contrast = %v, want 1.0", c.Float("contrast"))
	}
	v, ok := c.Constant("num_samples")
	if !ok || v.AsInt() != 512 {
		t.Fatalf("num_samples = %v (%v)", v, ok)
	}
	if got := c.Names(); len(got) != 6 || got[0] != "on" {
		t.Fatalf("names = %v", got)
	}
}

func TestNewContainerUnknownOverride(t *testing.T) {
	_, err := NewContainer(gratingSchema(), map[string]Value{"colour": Float(1)})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if se.Field != "colour" {
		t.Fatalf("error should name the key, got %q", se.Field)
	}
	if !errors.Is(err, ErrUnknownField) {
		t.Fatal("expected ErrUnknownField in chain")
	}
}

func TestNewContainerOverrideTypeMismatch(t *testing.T) {
	_, err := NewContainer(gratingSchema(), map[string]Value{"contrast": String("high")})
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
	if tm.Field != "contrast" || tm.Got != KindString || tm.Want != KindFloat {
		t.Fatalf("unexpected mismatch detail: %+v", tm)
	}
}

func TestNewContainerUnsetOverrideDeferred(t *testing.T) {
	c, err := NewContainer(gratingSchema(), map[string]Value{"mask": Unset})
	if err != nil {
		t.Fatalf("Unset override should be accepted: %v", err)
	}
	if v, _ := c.Get("mask"); !v.IsUnset() {
		t.Fatalf("mask = %v, want unset", v)
	}
}

func TestSetValidatesEveryCall(t *testing.T) {
	c, _ := NewContainer(gratingSchema(), nil)
	if err := c.Set("orientation", Float(45)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set("orientation", Int(90)); err != nil {
		t.Fatalf("int should widen to float: %v", err)
	}
	if v, _ := c.Get("orientation"); v.Kind() != KindFloat || v.AsFloat() != 90 {
		t.Fatalf("orientation = %v", v)
	}
	var tm *TypeMismatchError
	if err := c.Set("orientation", Vec(1, 2)); !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
	if c.Float("orientation") != 90 {
		t.Fatal("failed Set must not change the value")
	}
}

func TestSetBoolIntAlias(t *testing.T) {
	c, _ := NewContainer(gratingSchema(), nil)
	if err := c.Set("on", Int(0)); err != nil {
		t.Fatalf("int should alias bool: %v", err)
	}
	if c.Bool("on") {
		t.Fatal("on should be false after Set(0)")
	}
}

func TestSetConstantRejected(t *testing.T) {
	c, _ := NewContainer(gratingSchema(), nil)
	if err := c.Set("num_samples", Int(4)); !errors.Is(err, ErrConstantField) {
		t.Fatalf("expected ErrConstantField, got %v", err)
	}
	if !c.IsConstant("num_samples") {
		t.Fatal("num_samples should be constant")
	}
}

func TestSchemaDuplicateField(t *testing.T) {
	s := gratingSchema().Extend("bad", []Field{F("contrast", Float(0.5))}, nil)
	var se *SchemaError
	if _, err := NewContainer(s, nil); !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestSchemaVariableAndConstant(t *testing.T) {
	s := NewSchema("bad", []Field{F("x", Float(0))}, []Field{F("x", Float(0))})
	var se *SchemaError
	if _, err := NewContainer(s, nil); !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestSchemaDefaultKindChecked(t *testing.T) {
	s := NewSchema("bad", []Field{{Name: "x", Kind: KindFloat, Default: String("no")}}, nil)
	if _, err := NewContainer(s, nil); err == nil {
		t.Fatal("expected error for mistyped default")
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"float":           KindFloat,
		"types.FloatType": KindFloat,
		"int":             KindInt,
		"bool":            KindBool,
		"str":             KindString,
		"vec":             KindVec,
	}
	for name, want := range cases {
		got, err := ParseKind(name)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseKind("complex"); err == nil {
		t.Error("expected error for unknown type name")
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny([]any{1, 2.5})
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	if !v.Equal(Vec(1, 2.5)) {
		t.Fatalf("got %v", v)
	}
	if _, err := FromAny(struct{}{}); err == nil {
		t.Fatal("expected error for struct")
	}
}

func TestValueString(t *testing.T) {
	if got := Float(1).String(); got != "1.0" {
		t.Fatalf("Float(1) = %s", got)
	}
	if got := Vec(1, 2).String(); got != "[1.0, 2.0]" {
		t.Fatalf("Vec = %s", got)
	}
}
