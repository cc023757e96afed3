// Package errors is the status-coded error taxonomy of the ledger.
// Every failure raised while evaluating operations or applying blocks
// carries a Status that decides whether the enclosing transaction is
// dropped or the whole block is aborted.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var trackLocation = false

// EnableLocationTracking records call sites on every error built after
// the call. Intended for tests and debugging.
func EnableLocationTracking() { trackLocation = true }

// CallSite is a location where an error was built.
type CallSite struct {
	FuncName string
	File     string
	Line     int
}

// Error is a status-coded error with an optional cause.
type Error struct {
	Code      Status
	Message   string
	Cause     *Error
	CallStack []*CallSite
}

func convert(err error) *Error {
	if err == nil {
		return nil
	}
	if x := (*Error)(nil); errors.As(err, &x) {
		if x == err {
			return x
		}
		// Keep the outer message, which includes the wrapped one.
		return &Error{Code: x.Code, Message: err.Error(), Cause: x}
	}
	if x := Status(0); errors.As(err, &x) {
		return &Error{Code: x, Message: err.Error()}
	}
	return &Error{Code: Internal, Message: err.Error()}
}

func (e *Error) setCause(c *Error) {
	e.Cause = c
	if c == nil || e.Message != "" {
		return
	}
	if e.Code == Internal || e.Code == OK {
		e.Code = c.Code
	}
}

func (e *Error) recordCallSite(depth int) {
	if !trackLocation {
		return
	}
	pc, file, line, ok := runtime.Caller(depth)
	if !ok {
		return
	}
	cs := &CallSite{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		cs.FuncName = fn.Name()
	}
	e.CallStack = append(e.CallStack, cs)
}

func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Code
}

func (e *Error) Is(target error) bool {
	switch f := target.(type) {
	case *Error:
		if e.Code == f.Code {
			return true
		}
	case Status:
		if e.Code == f {
			return true
		}
	}
	if e.Cause != nil {
		return e.Cause.Is(target)
	}
	return false
}

func (e *Error) Format(f fmt.State, verb rune) {
	if f.Flag('+') {
		_, _ = f.Write([]byte(e.Print()))
	} else {
		_, _ = f.Write([]byte(e.Error()))
	}
}

// Print renders the message chain with call stacks, one cause per
// paragraph.
func (e *Error) Print() string {
	if e.CallStack == nil && e.Cause == nil {
		return e.Error()
	}
	var str []string
	for e != nil {
		msg := e.Message
		if msg == "" {
			msg = e.Code.String()
		} else if e.Cause != nil {
			msg = strings.TrimSuffix(msg, e.Cause.Message)
		}
		for _, cs := range e.CallStack {
			msg += fmt.Sprintf("\n%s\n    %s:%d", cs.FuncName, cs.File, cs.Line)
		}
		str = append(str, msg)
		e = e.Cause
	}
	return strings.Join(str, "\n")
}

// As calls stdlib errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is calls stdlib errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// Unwrap calls stdlib errors.Unwrap.
func Unwrap(err error) error { return errors.Unwrap(err) }

// New calls stdlib errors.New. Prefer a Status constructor.
func New(text string) error { return errors.New(text) }

// Join calls stdlib errors.Join.
func Join(errs ...error) error { return errors.Join(errs...) }

// Code returns the status of the first Error in the chain, Internal for
// foreign errors, or OK for nil.
func Code(err error) Status {
	if err == nil {
		return OK
	}
	var e *Error
	if !As(err, &e) {
		var s Status
		if As(err, &s) {
			return s
		}
		return Internal
	}
	return e.Code
}

// IsRecoverable returns true if err only rejects the enclosing
// transaction.
func IsRecoverable(err error) bool { return err != nil && Code(err).IsRecoverable() }

// IsFatal returns true if err must abort the enclosing block.
func IsFatal(err error) bool { return err != nil && Code(err).Class() == ClassFatal }
