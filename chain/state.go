package chain

import (
	"fmt"
	"sync/atomic"

	"github.com/blockberries/ledger/errors"
)

// State is a state of the block applicator.
type State uint32

const (
	// StateIdle: no block in flight. Transactions may be pushed into the
	// pending pool.
	StateIdle State = iota
	// StateValidating: the header of a candidate block is being checked
	// against the head.
	StateValidating
	// StateApplying: the transactions of the candidate are being applied
	// inside the block session.
	StateApplying
	// StateFinalizing: head state is being advanced. The state is kept
	// once finalizing completes, until the block is committed or aborted.
	StateFinalizing
	// StateCommitted: the last block was committed.
	StateCommitted
	// StateAborted: the last block was rolled back.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateValidating:
		return "Validating"
	case StateApplying:
		return "Applying"
	case StateFinalizing:
		return "Finalizing"
	case StateCommitted:
		return "Committed"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// settled reports whether no block is in flight.
func (s State) settled() bool {
	return s == StateIdle || s == StateCommitted || s == StateAborted
}

// guard enforces the applicator state machine. Callers serialize access
// through the chain mutex; the atomic only makes State safe to read from
// other goroutines.
type guard struct {
	state atomic.Uint32
}

func (g *guard) load() State { return State(g.state.Load()) }

// begin moves a settled applicator to Validating.
func (g *guard) begin() error {
	if s := g.load(); !s.settled() {
		return errors.Precondition.WithFormat("cannot apply a block in state %v", s)
	}
	g.state.Store(uint32(StateValidating))
	return nil
}

// advance moves from one in-flight state to the next.
func (g *guard) advance(from, to State) error {
	if !g.state.CompareAndSwap(uint32(from), uint32(to)) {
		return errors.Internal.WithFormat("applicator moved to %v in state %v (expected %v)", to, g.load(), from)
	}
	return nil
}

// finish settles an in-flight block as committed or aborted.
func (g *guard) finish(to State) error {
	if s := g.load(); s.settled() {
		return errors.Precondition.WithFormat("no block in flight to move to %v (state %v)", to, s)
	}
	g.state.Store(uint32(to))
	return nil
}
