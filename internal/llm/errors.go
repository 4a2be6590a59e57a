package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a generation failure. The kinds stay distinguishable
// because callers react differently: a refusal gets a user-facing apology,
// unavailability is retryable by the caller, and malformed output is a contract
// violation that is logged and never retried.
type ErrorKind int

const (
	// KindRefused means the service declined to produce output (policy refusal).
	KindRefused ErrorKind = iota + 1

	// KindMalformedOutput means the returned shape failed schema validation.
	KindMalformedOutput

	// KindUnavailable means a transport failure, timeout, or upstream 5xx/429.
	KindUnavailable

	// KindEmptyOutput means the output was schema-valid but carried an empty
	// answer or empty widget source.
	KindEmptyOutput
)

func (k ErrorKind) String() string {
	switch k {
	case KindRefused:
		return "refused"
	case KindMalformedOutput:
		return "malformed_output"
	case KindUnavailable:
		return "unavailable"
	case KindEmptyOutput:
		return "empty_output"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every gateway operation.
type Error struct {
	Kind ErrorKind
	Op   string // use case: classify, answer, widget, summary
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, or 0 if err is not a gateway error.
func KindOf(err error) ErrorKind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return 0
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
