package param

import (
	"errors"
	"fmt"
)

// #region errors
var (
	// ErrUnknownField is wrapped by lookups of a name no schema declares.
	ErrUnknownField = errors.New("unknown parameter")
	// ErrConstantField is wrapped when a constant is written or controlled.
	ErrConstantField = errors.New("constant parameter")
)

// SchemaError reports a malformed schema or an override naming an unknown field.
type SchemaError struct {
	Schema string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Schema != "" {
		return fmt.Sprintf("schema %s: field %q: %s", e.Schema, e.Field, e.Reason)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// TypeMismatchError reports a value whose kind the target field does not accept.
type TypeMismatchError struct {
	Field string
	Got   Kind
	Want  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %q: got %s, want %s", e.Field, e.Got, e.Want)
}

// #endregion errors
