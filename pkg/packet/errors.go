package packet

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("packet: nil handler")

	// ErrUnboundKey is returned when a key has no schema in the registry.
	ErrUnboundKey = errors.New("packet: key has no bound schema")
)

// UnknownSchemaError reports a message name that no loaded file defines.
type UnknownSchemaError struct {
	Key    Key
	Schema protoreflect.FullName
}

func (e *UnknownSchemaError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("packet: key %s bound to unknown schema %q", e.Key, e.Schema)
	}
	return fmt.Sprintf("packet: unknown schema %q", e.Schema)
}

// SchemaMismatchError reports a payload or field mapping that does not
// conform to the schema it was encoded or decoded with.
type SchemaMismatchError struct {
	Key    Key
	Schema protoreflect.FullName
	Field  string
	Reason string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("packet: schema mismatch for %s", e.Schema)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %s)", e.Key)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

// HandlerError records a handler that failed during dispatch. Panic is set
// when the handler panicked instead of returning an error.
type HandlerError struct {
	Key         Key
	ID          uint64
	Owner       string
	Description string
	Panic       any
	Err         error
}

func (e *HandlerError) Error() string {
	who := e.Owner
	if e.Description != "" {
		who += " (" + e.Description + ")"
	}
	if e.Panic != nil {
		return fmt.Sprintf("packet: handler %d for %s by %s panicked: %v", e.ID, e.Key, who, e.Panic)
	}
	return fmt.Sprintf("packet: handler %d for %s by %s: %v", e.ID, e.Key, who, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func mismatch(key Key, schema protoreflect.FullName, field, reason string) *SchemaMismatchError {
	return &SchemaMismatchError{Key: key, Schema: schema, Field: field, Reason: reason}
}
