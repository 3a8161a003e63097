package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is the closed set of failure classes the upload core signals.
// Callers are expected to switch on the kind rather than match on
// message text or wrapped dependency errors.
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindNotFound              Kind = "not_found"
	KindInvalidState          Kind = "invalid_state"
	KindIncompleteUpload      Kind = "incomplete_upload"
	KindTransientDependency   Kind = "transient_dependency"
	KindInternalInconsistency Kind = "internal_inconsistency"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, unwrapping as needed. Errors outside
// the taxonomy report KindInternalInconsistency: an unclassified failure
// escaping the core is itself an invariant violation.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternalInconsistency
}

func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the caller may retry the failed operation
// unchanged. Only transient dependency failures qualify.
func Retryable(err error) bool {
	return Is(err, KindTransientDependency)
}
