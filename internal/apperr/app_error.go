package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and transport mapping.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindForbidden      Kind = "forbidden"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindPersistence    Kind = "persistence"
	KindIntegration    Kind = "integration"
)

// Error is a classified application error. Sentinels are declared once per
// package and compared with errors.Is.
type Error struct {
	kind Kind
	code string
	msg  string
}

// New creates a classified error.
func New(kind Kind, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func Validation(code, msg string) *Error     { return New(KindValidation, code, msg) }
func NotFound(code, msg string) *Error       { return New(KindNotFound, code, msg) }
func Conflict(code, msg string) *Error       { return New(KindConflict, code, msg) }
func Authentication(code, msg string) *Error { return New(KindAuthentication, code, msg) }
func Forbidden(code, msg string) *Error      { return New(KindForbidden, code, msg) }
func Integration(code, msg string) *Error    { return New(KindIntegration, code, msg) }

func (e *Error) Error() string { return e.msg }
func (e *Error) Kind() Kind    { return e.kind }
func (e *Error) Code() string  { return e.code }
func (e *Error) Msg() string   { return e.msg }

// Wrap attaches an underlying cause. errors.Is(result, e) still holds.
func (e *Error) Wrap(parent error) error {
	if parent == nil {
		return e
	}
	return &wrapped{err: e, parent: parent}
}

type wrapped struct {
	err    *Error
	parent error
}

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %v", w.err.msg, w.parent)
}

func (w *wrapped) Unwrap() []error {
	return []error{w.err, w.parent}
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err. Unclassified errors are persistence failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.kind
	}
	return KindPersistence
}
