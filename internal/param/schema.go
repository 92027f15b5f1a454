package param

import "fmt"

// #region field
// Field declares one named parameter with its kind and default.
// A Default of Unset leaves the value for the owner to fill in.
type Field struct {
	Name    string
	Kind    Kind
	Default Value
}

// F is shorthand for a Field whose kind is taken from its default.
func F(name string, def Value) Field {
	return Field{Name: name, Kind: def.Kind(), Default: def}
}

// #endregion field

// #region schema
// Schema lists the mutable and constant fields of one type of parameterized object.
// Schemas compose by extension: a child inherits every field of its ancestors.
type Schema struct {
	Name      string
	Parent    *Schema
	Fields    []Field
	Constants []Field
}

// NewSchema creates a root schema.
func NewSchema(name string, fields, constants []Field) *Schema {
	return &Schema{Name: name, Fields: fields, Constants: constants}
}

// Extend derives a child schema that adds fields and constants to s.
func (s *Schema) Extend(name string, fields, constants []Field) *Schema {
	return &Schema{Name: name, Parent: s, Fields: fields, Constants: constants}
}

// resolved is the flattened view of a schema chain.
type resolved struct {
	order     []string
	fields    map[string]Field
	constants map[string]Field
}

// resolve flattens the ancestor chain, root first, and checks that every name
// is declared once and only in one partition.
func (s *Schema) resolve() (*resolved, error) {
	var chain []*Schema
	for cur := s; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	r := &resolved{fields: map[string]Field{}, constants: map[string]Field{}}
	for i := len(chain) - 1; i >= 0; i-- {
		sc := chain[i]
		for _, f := range sc.Fields {
			if err := r.add(sc.Name, f, false); err != nil {
				return nil, err
			}
		}
		for _, f := range sc.Constants {
			if err := r.add(sc.Name, f, true); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *resolved) add(schema string, f Field, constant bool) error {
	if f.Name == "" {
		return &SchemaError{Schema: schema, Field: f.Name, Reason: "empty field name"}
	}
	if f.Kind == KindInvalid {
		return &SchemaError{Schema: schema, Field: f.Name, Reason: "no kind declared"}
	}
	_, inFields := r.fields[f.Name]
	_, inConstants := r.constants[f.Name]
	switch {
	case inFields && constant, inConstants && !constant:
		return &SchemaError{Schema: schema, Field: f.Name, Reason: "declared as both variable and constant parameter"}
	case inFields || inConstants:
		return &SchemaError{Schema: schema, Field: f.Name, Reason: "more than one definition of parameter"}
	}
	if !f.Default.IsUnset() {
		def, ok := Convert(f.Default, f.Kind)
		if !ok {
			return &SchemaError{Schema: schema, Field: f.Name,
				Reason: fmt.Sprintf("default has kind %s, declared %s", f.Default.Kind(), f.Kind)}
		}
		f.Default = def
	}
	if constant {
		r.constants[f.Name] = f
	} else {
		r.fields[f.Name] = f
	}
	r.order = append(r.order, f.Name)
	return nil
}

// #endregion schema
