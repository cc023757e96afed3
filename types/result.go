package types

import (
	"bytes"
	"fmt"
)

// ResultKind tags the variant held by an OperationResult.
type ResultKind uint8

const (
	ResultVoid ResultKind = iota
	ResultObjectID
	ResultAsset
	ResultContract
	ResultLogger
	ResultError
)

func (k ResultKind) String() string {
	switch k {
	case ResultVoid:
		return "void"
	case ResultObjectID:
		return "object_id"
	case ResultAsset:
		return "asset"
	case ResultContract:
		return "contract"
	case ResultLogger:
		return "logger"
	case ResultError:
		return "error"
	}
	return fmt.Sprintf("result(%d)", uint8(k))
}

// AffectedKind tags one entry of a contract's affected list.
type AffectedKind uint8

const (
	AffectedBalance AffectedKind = iota
	AffectedLog
	AffectedMemo
	AffectedObject
	// AffectedLock adds Amount to the account's locked total. A negative
	// amount releases the lock.
	AffectedLock
	// AffectedSpendLocked debits Amount out of the account's locked funds.
	AffectedSpendLocked
)

// ContractAffected is one side effect reported by the script engine.
type ContractAffected struct {
	Kind    AffectedKind `cramberry:"1"`
	Account AccountID    `cramberry:"2"`
	Amount  Asset        `cramberry:"3"`
	Message string       `cramberry:"4"`
	Object  ObjectID     `cramberry:"5"`
}

// ContractResult is the outcome of a contract call.
type ContractResult struct {
	ContractID        ContractID         `cramberry:"1"`
	ContractAffecteds []ContractAffected `cramberry:"2"`
	ExistedPV         bool               `cramberry:"3"`
	ProcessValue      []byte             `cramberry:"4"`
	// RelevantDataSize is the number of contract data bytes touched.
	RelevantDataSize uint64 `cramberry:"5"`
}

// SameEffects reports whether r and o carry identical affected lists.
// Replaying nodes compare recorded and recomputed results with it.
func (r *ContractResult) SameEffects(o *ContractResult) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.ContractAffecteds) != len(o.ContractAffecteds) {
		return false
	}
	for i := range r.ContractAffecteds {
		a, b := r.ContractAffecteds[i], o.ContractAffecteds[i]
		if a.Kind != b.Kind || a.Account != b.Account || a.Amount != b.Amount || a.Message != b.Message || a.Object != b.Object {
			return false
		}
	}
	return r.ContractID == o.ContractID && bytes.Equal(r.ProcessValue, o.ProcessValue)
}

// ErrorResult records a failed operation inside an agreed task.
type ErrorResult struct {
	Code    uint64 `cramberry:"1"`
	Message string `cramberry:"2"`
}

// OperationResult is the recorded outcome of one operation. Exactly one
// of the variant fields is set according to Kind. Fees and
// RealRunningTime are common to every variant.
type OperationResult struct {
	Kind     ResultKind      `cramberry:"1"`
	ObjectID *ObjectID       `cramberry:"2"`
	Asset    *Asset          `cramberry:"3"`
	Contract *ContractResult `cramberry:"4"`
	Logger   *string         `cramberry:"5"`
	Error    *ErrorResult    `cramberry:"6"`
	Fees     []Asset         `cramberry:"7"`
	// RealRunningTime is the measured evaluation time in microseconds,
	// zero when timing was not enforced.
	RealRunningTime uint64 `cramberry:"8"`
}

// VoidResult returns an empty result.
func VoidResult() OperationResult { return OperationResult{Kind: ResultVoid} }

// ObjectIDResult returns a result naming a created object.
func ObjectIDResult(id ObjectID) OperationResult {
	return OperationResult{Kind: ResultObjectID, ObjectID: &id}
}

// AssetResult returns a result carrying an amount.
func AssetResult(a Asset) OperationResult {
	return OperationResult{Kind: ResultAsset, Asset: &a}
}

// ContractCallResult returns a result carrying a contract outcome.
func ContractCallResult(r ContractResult) OperationResult {
	return OperationResult{Kind: ResultContract, Contract: &r}
}

// LoggerResult returns a result carrying a log line.
func LoggerResult(msg string) OperationResult {
	return OperationResult{Kind: ResultLogger, Logger: &msg}
}

// FailedResult returns an error result.
func FailedResult(code uint64, msg string) OperationResult {
	return OperationResult{Kind: ResultError, Error: &ErrorResult{Code: code, Message: msg}}
}

// IsError reports whether the result records a failure.
func (r OperationResult) IsError() bool { return r.Kind == ResultError }

// TotalFee sums the fees recorded in asset a.
func (r OperationResult) TotalFee(a AssetID) int64 {
	var n int64
	for _, f := range r.Fees {
		if f.AssetID == a {
			n += f.Amount
		}
	}
	return n
}

// AddFee merges f into the recorded fee breakdown.
func (r *OperationResult) AddFee(f Asset) {
	if f.Amount == 0 {
		return
	}
	for i := range r.Fees {
		if r.Fees[i].AssetID == f.AssetID {
			r.Fees[i].Amount += f.Amount
			return
		}
	}
	r.Fees = append(r.Fees, f)
}
