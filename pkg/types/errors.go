package types

import (
	"errors"
	"fmt"
)

// Storage error taxonomy. Store-layer failures are wrapped in *StoreError and
// match these sentinels with errors.Is.
var (
	ErrNotReady            = errors.New("store is not ready")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrVersionConflict     = errors.New("schema version conflict")
	ErrBlocked             = errors.New("store is blocked by another session")
	ErrTransientIO         = errors.New("transient storage failure")
	ErrNotFound            = errors.New("record not found")
	ErrUnavailable         = errors.New("store is unavailable")
)

// Caller errors.
var (
	ErrInvalidID    = errors.New("invalid record ID")
	ErrInvalidLabel = errors.New("field label must not be empty")
	ErrInvalidData  = errors.New("invalid record data")
	ErrClosed       = errors.New("album is closed")
)

// ErrorKind classifies a storage failure.
type ErrorKind string

// Error kinds, one per taxonomy entry plus KindFatal for anything the store
// cannot recover from on its own.
const (
	KindNotReady            ErrorKind = "not_ready"
	KindDuplicateKey        ErrorKind = "duplicate_key"
	KindConstraintViolation ErrorKind = "constraint_violation"
	KindVersionConflict     ErrorKind = "version_conflict"
	KindBlocked             ErrorKind = "blocked"
	KindTransientIO         ErrorKind = "transient_io"
	KindNotFound            ErrorKind = "not_found"
	KindUnavailable         ErrorKind = "unavailable"
	KindFatal               ErrorKind = "fatal"
)

var kindSentinels = map[ErrorKind]error{
	KindNotReady:            ErrNotReady,
	KindDuplicateKey:        ErrDuplicateKey,
	KindConstraintViolation: ErrConstraintViolation,
	KindVersionConflict:     ErrVersionConflict,
	KindBlocked:             ErrBlocked,
	KindTransientIO:         ErrTransientIO,
	KindNotFound:            ErrNotFound,
	KindUnavailable:         ErrUnavailable,
}

// StoreError records a failed store operation together with its
// classification.
type StoreError struct {
	Op         string
	Collection string
	Kind       ErrorKind
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Collection, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok && s != e.Err {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrorKind returns the classification as a string.
func (e *StoreError) ErrorKind() string { return string(e.Kind) }

// KindOf returns the classification of err. Errors that are neither a
// *StoreError nor one of the taxonomy sentinels are KindFatal. A nil error
// has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindFatal
}
