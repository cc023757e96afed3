package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger/errors"
)

func TestStatusClasses(t *testing.T) {
	require.True(t, errors.Precondition.IsRecoverable())
	require.True(t, errors.Timeout.IsRecoverable())
	require.Equal(t, errors.ClassResource, errors.FeeCeiling.Class())
	require.Equal(t, errors.ClassConsistency, errors.Consistency.Class())
	require.Equal(t, errors.ClassPrecondition, errors.InsufficientBalance.Class())
	require.False(t, errors.Fatal.IsRecoverable())
	require.Equal(t, errors.ClassFatal, errors.Internal.Class())
}

func TestCodeThroughWrapping(t *testing.T) {
	base := errors.InsufficientBalance.WithFormat("account %d has %d", 7, 10)
	wrapped := fmt.Errorf("transfer: %w", base)
	require.Equal(t, errors.InsufficientBalance, errors.Code(wrapped))
	require.True(t, errors.Is(wrapped, errors.InsufficientBalance))
	require.True(t, errors.IsRecoverable(wrapped))

	fatal := errors.Fatal.Wrap(wrapped)
	require.Equal(t, errors.Fatal, errors.Code(fatal))
	require.True(t, errors.IsFatal(fatal))
	require.True(t, errors.Is(fatal, errors.InsufficientBalance), "cause must stay visible")
	require.Contains(t, fatal.Error(), "account 7 has 10")
}

func TestWrapInheritsCodeFromForeignStatus(t *testing.T) {
	err := errors.Internal.Wrap(fmt.Errorf("lookup: %w", errors.NotFound))
	require.Equal(t, errors.NotFound, errors.Code(err))
}

func TestForeignErrorsAreInternal(t *testing.T) {
	require.Equal(t, errors.Internal, errors.Code(fmt.Errorf("boom")))
	require.Equal(t, errors.OK, errors.Code(nil))
	require.Nil(t, errors.Precondition.Wrap(nil))
	require.False(t, errors.IsRecoverable(nil))
}

func TestWithFormatKeepsCause(t *testing.T) {
	cause := errors.Expired.With("proposal expired")
	err := errors.Precondition.WithFormat("update proposal: %w", cause)
	require.Equal(t, errors.Precondition, errors.Code(err))
	require.True(t, errors.Is(err, errors.Expired))
	require.Equal(t, "update proposal: proposal expired", err.Error())
}

func TestPrintWithCallSites(t *testing.T) {
	errors.EnableLocationTracking()
	err := errors.Timeout.With("worker exceeded budget")
	require.NotEmpty(t, err.CallStack)
	require.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")
}
