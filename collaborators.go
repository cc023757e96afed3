package ledger

import (
	"context"
	"time"

	"github.com/blockberries/ledger/types"
)

// AccountLookup resolves accounts for authority checks.
type AccountLookup interface {
	Account(id types.AccountID) (*types.AccountObject, error)
}

// AuthorityOracle decides whether an account may hold or pay with an
// asset.
type AuthorityOracle interface {
	IsAuthorized(account types.AccountID, asset *types.AssetObject) bool
}

// AssetListAuthority authorizes by the asset's own white and black lists.
type AssetListAuthority struct{}

func (AssetListAuthority) IsAuthorized(account types.AccountID, asset *types.AssetObject) bool {
	return asset.IsAuthorized(account)
}

// SignatureVerifier is the signature oracle. The node never inspects
// signature bytes itself.
type SignatureVerifier interface {
	// SignatureKeys recovers the keys that signed tx on chain chainID.
	SignatureKeys(chainID string, tx *types.SignedTransaction) ([]types.PublicKey, error)

	// Satisfied reports whether keys satisfy every required authority.
	Satisfied(keys []types.PublicKey, required types.RequiredAuthorities, accounts AccountLookup) (bool, error)
}

// WitnessSchedule names the producer authorized for a slot. Scheduling
// itself is decided outside the node.
type WitnessSchedule interface {
	ScheduledWitness(slotTime types.TimePoint) (types.WitnessID, error)
}

// WitnessScheduleFunc adapts a function to WitnessSchedule.
type WitnessScheduleFunc func(slotTime types.TimePoint) (types.WitnessID, error)

func (f WitnessScheduleFunc) ScheduledWitness(t types.TimePoint) (types.WitnessID, error) {
	return f(t)
}

// ScriptCall is one contract invocation handed to the script engine.
// Contract is a snapshot; the engine must not retain it.
type ScriptCall struct {
	Contract types.ContractObject
	Caller   types.AccountID
	Function string
	Args     [][]byte
	// Replay is set when the call reproduces a recorded result.
	Replay bool
}

// ScriptOutcome is what the script engine reports back.
type ScriptOutcome struct {
	Affecteds    []types.ContractAffected
	ProcessValue []byte
	// Data replaces the contract's persistent data when non-nil.
	Data             []byte
	RelevantDataSize uint64
}

// ScriptEngine runs contract code. It must honor ctx cancellation; the
// execution sandbox cancels ctx when the run time budget is exhausted.
type ScriptEngine interface {
	Run(ctx context.Context, call ScriptCall) (ScriptOutcome, error)
}

// ConfidentialVerifier checks the proofs carried by confidential
// transfers: that input and output commitments balance against the
// public amounts, that outputs carry valid range proofs, and that the
// owners of the spent inputs signed. The node only tracks commitments and
// public amounts.
type ConfidentialVerifier interface {
	VerifyConfidential(op types.Operation, inputs []*types.BlindedBalanceObject) error
}

// Clock is the wall-clock source used for authoring.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
