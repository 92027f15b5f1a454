package param

import (
	"fmt"
	"sort"
)

// #region container
// Container holds the current values of one parameterized object.
// Mutable fields change through Set; constants are fixed at construction.
type Container struct {
	schema    string
	kinds     map[string]Kind
	values    map[string]Value
	constants map[string]Value
	order     []string
}

// NewContainer installs schema defaults and applies overrides. Overrides are
// type-checked unless they are Unset; an override naming an unknown field fails.
func NewContainer(schema *Schema, overrides map[string]Value) (*Container, error) {
	if schema == nil {
		return nil, &SchemaError{Reason: "nil schema"}
	}
	r, err := schema.resolve()
	if err != nil {
		return nil, err
	}

	c := &Container{
		schema:    schema.Name,
		kinds:     make(map[string]Kind, len(r.order)),
		values:    make(map[string]Value, len(r.fields)),
		constants: make(map[string]Value, len(r.constants)),
		order:     r.order,
	}
	for name, f := range r.fields {
		c.kinds[name] = f.Kind
		c.values[name] = f.Default
	}
	for name, f := range r.constants {
		c.kinds[name] = f.Kind
		c.constants[name] = f.Default
	}

	// deterministic error reporting when several overrides are bad
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		v := overrides[name]
		kind, ok := c.kinds[name]
		if !ok {
			return nil, &SchemaError{Schema: schema.Name, Field: name,
				Reason: "passed as override but not declared", Err: ErrUnknownField}
		}
		if v.IsUnset() {
			continue
		}
		conv, ok := Convert(v, kind)
		if !ok {
			return nil, &TypeMismatchError{Field: name, Got: v.Kind(), Want: kind}
		}
		if _, isConst := c.constants[name]; isConst {
			c.constants[name] = conv
		} else {
			c.values[name] = conv
		}
	}
	return c, nil
}

// Schema returns the name of the schema the container was built from.
func (c *Container) Schema() string { return c.schema }

// Set writes a mutable field, validating the kind on every call.
func (c *Container) Set(name string, v Value) error {
	kind, ok := c.kinds[name]
	if !ok {
		return fmt.Errorf("set %s: %w", name, ErrUnknownField)
	}
	if _, isConst := c.constants[name]; isConst {
		return fmt.Errorf("set %s: %w", name, ErrConstantField)
	}
	conv, ok := Convert(v, kind)
	if !ok {
		return &TypeMismatchError{Field: name, Got: v.Kind(), Want: kind}
	}
	c.values[name] = conv
	return nil
}

// Get returns a mutable field's current value.
func (c *Container) Get(name string) (Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// MustGet is Get for names the caller declared itself; it panics on unknown names.
func (c *Container) MustGet(name string) Value {
	v, ok := c.values[name]
	if !ok {
		panic(fmt.Sprintf("param: %s has no field %q", c.schema, name))
	}
	return v
}

func (c *Container) Float(name string) float64 { return c.MustGet(name).AsFloat() }
func (c *Container) Int(name string) int64 { return c.MustGet(name).AsInt() }
func (c *Container) Bool(name string) bool { return c.MustGet(name).AsBool() }
func (c *Container) Str(name string) string { return c.MustGet(name).AsString() }
func (c *Container) Vec(name string) []float64 { return c.MustGet(name).AsVec() }

// Constant returns a constant field's value.
func (c *Container) Constant(name string) (Value, bool) {
	v, ok := c.constants[name]
	return v, ok
}

// IsConstant reports whether name is declared as a constant.
func (c *Container) IsConstant(name string) bool {
	_, ok := c.constants[name]
	return ok
}

// FieldKind returns the declared kind of a mutable or constant field.
func (c *Container) FieldKind(name string) (Kind, error) {
	kind, ok := c.kinds[name]
	if !ok {
		return KindInvalid, fmt.Errorf("field kind %s: %w", name, ErrUnknownField)
	}
	return kind, nil
}

// Names lists every declared field in declaration order, ancestors first.
func (c *Container) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Snapshot copies the current mutable values.
func (c *Container) Snapshot() map[string]Value {
	out := make(map[string]Value, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// #endregion container
