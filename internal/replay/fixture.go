package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/visionegg/visionegg-sub000/internal/param"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: one stimulus,
// the remote names driving its fields, and a script of steps.
type Fixture struct {
	Description string           `json:"description"`
	RefreshHz   float64          `json:"refresh_hz"`
	Fields      []FixtureField   `json:"fields"`
	Bindings    []FixtureBinding `json:"bindings"`
	Steps       []FixtureStep    `json:"steps"`
}

// FixtureField declares a stimulus parameter. Kind is required when Default is null.
type FixtureField struct {
	Name    string `json:"name"`
	Default any    `json:"default"`
	Kind    string `json:"kind,omitempty"`
}

// FixtureBinding registers a remote name and binds it to a field.
type FixtureBinding struct {
	Name    string `json:"name"`
	Field   string `json:"field,omitempty"` // defaults to Name
	Kind    string `json:"kind,omitempty"`  // defaults to the field's kind
	Initial string `json:"initial,omitempty"`
	// Hold starts the binding as a constant of the field's default instead of the
	// registry default. Ignored when Initial is set.
	Hold bool `json:"hold,omitempty"`
}

// FixtureStep is one scripted action.
type FixtureStep struct {
	Op string `json:"op"` // submit | trial | idle

	// submit
	Name        string `json:"name,omitempty"`
	Line        string `json:"line,omitempty"`
	ExpectError string `json:"expect_error,omitempty"`

	// trial
	Duration float64         `json:"duration,omitempty"`
	Unit     string          `json:"unit,omitempty"`
	Submits  []FixtureSubmit `json:"submits,omitempty"`

	// idle
	Cycles int `json:"cycles,omitempty"`

	// Expect lists the drawn value of a field for every rendered frame.
	Expect map[string][]any `json:"expect,omitempty"`
}

// FixtureSubmit is a command sent while a trial runs, after frame Frame is swapped.
type FixtureSubmit struct {
	Frame int    `json:"frame"`
	Name  string `json:"name"`
	Line  string `json:"line"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Schema converts the fixture fields to a parameter schema.
func (f *Fixture) Schema() (*param.Schema, error) {
	fields := make([]param.Field, 0, len(f.Fields))
	for _, ff := range f.Fields {
		field, err := ff.toField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return param.NewSchema("stimulus", fields, nil), nil
}

func (ff FixtureField) toField() (param.Field, error) {
	var kind param.Kind
	if ff.Kind != "" {
		k, err := param.ParseKind(ff.Kind)
		if err != nil {
			return param.Field{}, fmt.Errorf("field %s: %w", ff.Name, err)
		}
		kind = k
	}
	if ff.Default == nil {
		if kind == param.KindInvalid {
			return param.Field{}, fmt.Errorf("field %s: kind is required without a default", ff.Name)
		}
		return param.Field{Name: ff.Name, Kind: kind}, nil
	}
	def, err := param.FromAny(ff.Default)
	if err != nil {
		return param.Field{}, fmt.Errorf("field %s: %w", ff.Name, err)
	}
	if kind == param.KindInt && def.Kind() == param.KindFloat && def.AsFloat() == math.Trunc(def.AsFloat()) {
		def = param.Int(int64(def.AsFloat()))
	}
	if kind != param.KindInvalid {
		conv, ok := param.Convert(def, kind)
		if !ok {
			return param.Field{}, fmt.Errorf("field %s: default %v is not %s", ff.Name, def, kind)
		}
		def = conv
	}
	return param.F(ff.Name, def), nil
}

// FieldsOf describes the mutable fields of c, with their current values as defaults.
func FieldsOf(c *param.Container) []FixtureField {
	var out []FixtureField
	for _, name := range c.Names() {
		if c.IsConstant(name) {
			continue
		}
		v := c.MustGet(name)
		out = append(out, FixtureField{Name: name, Default: plain(v), Kind: v.Kind().String()})
	}
	return out
}

func plain(v param.Value) any {
	switch v.Kind() {
	case param.KindBool:
		return v.AsBool()
	case param.KindInt:
		return v.AsInt()
	case param.KindFloat:
		return v.AsFloat()
	case param.KindString:
		return v.AsString()
	case param.KindVec:
		return v.AsVec()
	}
	return nil
}

// #endregion fixture-loader
