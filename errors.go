package ledger

import (
	"errors"
	"fmt"

	lerrors "github.com/blockberries/ledger/errors"
)

// HaltError signals that the node detected an irrecoverable
// inconsistency and requests an immediate chain halt.
//
// When the engine receives a HaltError from ExecuteBlock, it must
// stop consensus, log the error, and not proceed to Commit.
type HaltError struct {
	Reason string
	Height uint64
	Cause  error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("HALT at height %d: %s", e.Height, e.Reason)
}

func (e *HaltError) Unwrap() error { return e.Cause }

// NewHaltError creates a new HaltError.
func NewHaltError(height uint64, reason string) *HaltError {
	return &HaltError{Height: height, Reason: reason}
}

// IsHalt checks whether an error is a HaltError and returns it.
func IsHalt(err error) (*HaltError, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}

// HaltOnFatal converts a fatal block failure into a HaltError. Other
// errors are returned unchanged.
func HaltOnFatal(height uint64, err error) error {
	if err == nil || !lerrors.IsFatal(err) {
		return err
	}
	if _, ok := IsHalt(err); ok {
		return err
	}
	return &HaltError{Height: height, Reason: err.Error(), Cause: err}
}
