package objstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrState is reported when an operation runs outside of the context it
	// requires: a closed session or DB, no active writable transaction, a
	// transaction that is already open.
	ErrState = errors.New("invalid state")

	// ErrConstraint is reported on primary key presence/absence mismatches
	// and uniqueness violations.
	ErrConstraint = errors.New("constraint violation")

	// ErrValue is reported when a primary key value cannot be converted to
	// the type of the key field.
	ErrValue = errors.New("invalid value")

	// ErrStore is reported for failures of the underlying storage and
	// transaction machinery.
	ErrStore = errors.New("store failure")

	// ErrUnknownClass is reported for types that were never added to the schema.
	ErrUnknownClass = errors.New("class not in schema")
)

// ClassError describes a failed operation on a class. Kind is one of ErrState,
// ErrConstraint or ErrValue and is matched by errors.Is.
type ClassError struct {
	Class *Class
	Key   any
	Kind  error
	Msg   string
	Err   error
}

func classErrf(cls *Class, key any, kind error, err error, format string, args ...any) error {
	return &ClassError{cls, key, kind, fmt.Sprintf(format, args...), err}
}

func stateErrf(cls *Class, format string, args ...any) error {
	return classErrf(cls, nil, ErrState, nil, format, args...)
}

func (e *ClassError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *ClassError) Unwrap() error {
	return e.Err
}

func (e *ClassError) Error() string {
	var buf strings.Builder
	if e.Class != nil {
		buf.WriteString(e.Class.Name())
		if e.Key != nil {
			fmt.Fprintf(&buf, "/%v", e.Key)
		}
		buf.WriteString(": ")
	}
	if e.Kind != nil {
		buf.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		if e.Kind != nil {
			buf.WriteString(": ")
		}
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// StoreError wraps a failure of the storage backend. It matches ErrStore.
type StoreError struct {
	Op  string
	Err error
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{op, err}
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Error() string {
	return "objstore: " + e.Op + ": " + e.Err.Error()
}
