package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// TransactionID identifies a transaction by the digest of its unsigned
// content.
type TransactionID = Hash

// AgreedTask marks a transaction synthesized from a proposal or crontab.
// TrxHash is the digest of the scheduled content, ScheduleID the entry
// that produced it.
type AgreedTask struct {
	TrxHash    Hash     `cramberry:"1"`
	ScheduleID ObjectID `cramberry:"2"`
}

// Transaction is an ordered batch of operations applied atomically.
type Transaction struct {
	RefBlockNum    uint16              `cramberry:"1"`
	RefBlockPrefix uint32              `cramberry:"2"`
	Expiration     TimePoint           `cramberry:"3"`
	Operations     []OperationEnvelope `cramberry:"4"`
	AgreedTask     *AgreedTask         `cramberry:"5"`
}

// ID returns the transaction id.
func (t *Transaction) ID() (TransactionID, error) {
	return Digest(t)
}

// SetReferenceBlock binds the transaction to a recent block for TaPoS.
func (t *Transaction) SetReferenceBlock(id BlockID) {
	t.RefBlockNum = uint16(id.Num())
	t.RefBlockPrefix = binary.LittleEndian.Uint32(id[4:8])
}

// Decoded unpacks every operation envelope.
func (t *Transaction) Decoded() ([]Operation, error) {
	ops := make([]Operation, len(t.Operations))
	for i, env := range t.Operations {
		op, err := env.Decode()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops[i] = op
	}
	return ops, nil
}

// Validate performs the stateless checks of the transaction and each of
// its operations.
func (t *Transaction) Validate() error {
	if len(t.Operations) == 0 {
		return errors.New("transaction has no operations")
	}
	ops, err := t.Decoded()
	if err != nil {
		return err
	}
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d (%v): %w", i, op.Type(), err)
		}
	}
	return nil
}

// Append encodes op and appends it.
func (t *Transaction) Append(op Operation) error {
	env, err := EncodeOperation(op)
	if err != nil {
		return err
	}
	t.Operations = append(t.Operations, env)
	return nil
}

// SignedTransaction is a transaction plus the signatures over its digest.
type SignedTransaction struct {
	Transaction Transaction `cramberry:"1"`
	Signatures  [][]byte    `cramberry:"2"`
}

// ID returns the id of the embedded transaction.
func (s *SignedTransaction) ID() (TransactionID, error) { return s.Transaction.ID() }

// EncodeTx packs a signed transaction for the lifecycle boundary.
func EncodeTx(s SignedTransaction) (Tx, error) {
	data, err := cramberry.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return Tx(data), nil
}

// DecodeTx unpacks a Tx.
func DecodeTx(tx Tx) (SignedTransaction, error) {
	var s SignedTransaction
	if err := cramberry.Unmarshal(tx, &s); err != nil {
		return SignedTransaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	return s, nil
}

// ProcessedTransaction is a signed transaction together with the result
// of each operation as recorded by the producing node.
type ProcessedTransaction struct {
	Signed           SignedTransaction `cramberry:"1"`
	OperationResults []OperationResult `cramberry:"2"`
}

// ID returns the id of the embedded transaction.
func (p *ProcessedTransaction) ID() (TransactionID, error) { return p.Signed.Transaction.ID() }

// RunningTime sums the recorded running time of every operation.
func (p *ProcessedTransaction) RunningTime() uint64 {
	var n uint64
	for _, r := range p.OperationResults {
		n += r.RealRunningTime
	}
	return n
}
