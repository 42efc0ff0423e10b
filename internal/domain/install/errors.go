package install

import (
	"errors"
	"fmt"
)

// Failure sentinels, matched with errors.Is against an *Error.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrStructuralInvalid = errors.New("no plugin root")
	ErrUnexpected        = errors.New("unexpected failure")
)

// User-facing outcome messages.
const (
	msgDownloadFailed = "Failed to download repository"
	msgNoPluginRoot   = "No valid plugin structure found (" + MarkerMain + "/" + MarkerMeta + " missing)"
	msgNoPatches      = "No patches found"
)

// FailureKind classifies why a run failed.
type FailureKind int

const (
	// FailureSourceUnavailable means the archive or patch listing could not be fetched or was empty.
	FailureSourceUnavailable FailureKind = iota + 1
	// FailureStructuralInvalid means no directory in the archive holds both marker files.
	FailureStructuralInvalid
	// FailureUnexpected covers every other fault during a run.
	FailureUnexpected
)

// String returns the failure kind name.
func (k FailureKind) String() string {
	switch k {
	case FailureSourceUnavailable:
		return "source_unavailable"
	case FailureStructuralInvalid:
		return "structural_invalid"
	case FailureUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is the typed failure carried by an unsuccessful Outcome.
type Error struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Error returns the user-facing message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the failure sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case FailureSourceUnavailable:
		return target == ErrSourceUnavailable
	case FailureStructuralInvalid:
		return target == ErrStructuralInvalid
	case FailureUnexpected:
		return target == ErrUnexpected
	}
	return false
}

func sourceUnavailable(msg string, cause error) *Error {
	return &Error{Kind: FailureSourceUnavailable, Message: msg, Err: cause}
}

func structuralInvalid() *Error {
	return &Error{Kind: FailureStructuralInvalid, Message: msgNoPluginRoot}
}

func unexpected(cause error) *Error {
	return &Error{Kind: FailureUnexpected, Message: "Error: " + cause.Error(), Err: cause}
}

// asFailure converts any error into an *Error, treating unknown errors as unexpected.
func asFailure(err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}
	return unexpected(err)
}

func panicError(v interface{}) *Error {
	if err, ok := v.(error); ok {
		return unexpected(fmt.Errorf("panic: %w", err))
	}
	return unexpected(fmt.Errorf("panic: %v", v))
}

// KindOf returns the failure kind carried by err, or zero when err is
// not an install failure.
func KindOf(err error) FailureKind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}
