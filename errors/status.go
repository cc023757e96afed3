package errors

import "fmt"

// Status is an evaluation status code. Codes in the 4xx range are
// recoverable by discarding the enclosing transaction; 5xx codes abort
// the block.
type Status uint64

const (
	// OK means success.
	OK Status = 0

	// BadRequest means the input is malformed.
	BadRequest Status = 400
	// Unauthorized means an authority or asset permission check failed.
	Unauthorized Status = 401
	// InsufficientBalance means spendable funds do not cover the request.
	InsufficientBalance Status = 402
	// NotFound means a referenced object does not exist.
	NotFound Status = 404
	// NotSupported means the operation has no evaluator on this node.
	NotSupported Status = 405
	// Timeout means the authoring run time budget was exhausted.
	Timeout Status = 408
	// Consistency means a ledger invariant would be violated.
	Consistency Status = 409
	// Expired means a time bound has passed or is out of range.
	Expired Status = 410
	// Precondition means a state check failed during evaluation.
	Precondition Status = 412
	// FeeCeiling means the handling fee exceeds its configured maximum.
	FeeCeiling Status = 413
	// Duplicate means the transaction was already applied.
	Duplicate Status = 425

	// Internal means an unexpected failure, such as a recovered panic.
	Internal Status = 500
	// Fatal means the block cannot be applied and the head must not move.
	Fatal Status = 503
)

// Class groups statuses by how the block applicator reacts to them.
type Class uint8

const (
	ClassNone Class = iota
	ClassPrecondition
	ClassResource
	ClassConsistency
	ClassFatal
)

var statusNames = map[Status]string{
	OK:                  "ok",
	BadRequest:          "bad request",
	Unauthorized:        "unauthorized",
	InsufficientBalance: "insufficient balance",
	NotFound:            "not found",
	NotSupported:        "not supported",
	Timeout:             "timeout",
	Consistency:         "consistency violation",
	Expired:             "expired",
	Precondition:        "precondition failed",
	FeeCeiling:          "fee ceiling exceeded",
	Duplicate:           "duplicate transaction",
	Internal:            "internal error",
	Fatal:               "fatal",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint64(s))
}

// Error implements error.
func (s Status) Error() string { return s.String() }

// Success returns true if the status represents success.
func (s Status) Success() bool { return s == OK }

// IsRecoverable returns true if the failure only rejects the enclosing
// transaction.
func (s Status) IsRecoverable() bool { return s >= 400 && s < 500 }

// Class returns the reaction class of the status.
func (s Status) Class() Class {
	switch s {
	case OK:
		return ClassNone
	case Timeout, FeeCeiling:
		return ClassResource
	case Consistency:
		return ClassConsistency
	case Internal, Fatal:
		return ClassFatal
	}
	return ClassPrecondition
}

// Wrap wraps err with the status. A nil err returns nil.
func (s Status) Wrap(err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Code: s}
	e.setCause(convert(err))
	e.recordCallSite(2)
	return e
}

// With builds an error from the operands, formatted as by fmt.Sprint.
func (s Status) With(v ...interface{}) *Error {
	e := &Error{Code: s, Message: fmt.Sprint(v...)}
	e.recordCallSite(2)
	return e
}

// WithFormat builds an error formatted as by fmt.Errorf. A %w operand
// becomes the cause.
func (s Status) WithFormat(format string, args ...interface{}) *Error {
	err := fmt.Errorf(format, args...)
	e := &Error{Code: s, Message: err.Error()}
	if u, ok := err.(interface{ Unwrap() error }); ok && u.Unwrap() != nil {
		e.Cause = convert(u.Unwrap())
	}
	e.recordCallSite(2)
	return e
}

// WithCauseAndFormat builds a formatted error with an explicit cause.
func (s Status) WithCauseAndFormat(cause error, format string, args ...interface{}) *Error {
	e := &Error{Code: s, Message: fmt.Sprintf(format, args...)}
	e.setCause(convert(cause))
	e.recordCallSite(2)
	return e
}
