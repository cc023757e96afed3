package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// FillOrderOperation records a market fill.
type FillOrderOperation struct {
	OrderID  ObjectID  `cramberry:"1"`
	Account  AccountID `cramberry:"2"`
	Pays     Asset     `cramberry:"3"`
	Receives Asset     `cramberry:"4"`
	Fee      Asset     `cramberry:"5"`
}

func (*FillOrderOperation) Type() VirtualOperationType { return VopFillOrder }
func (op *FillOrderOperation) FeePayer() AccountID     { return op.Account }
func (*FillOrderOperation) isVirtualOperation()        {}

// AssetSettleCancelOperation records the refund of a cancelled settlement.
type AssetSettleCancelOperation struct {
	Settlement ObjectID  `cramberry:"1"`
	Account    AccountID `cramberry:"2"`
	Amount     Asset     `cramberry:"3"`
}

func (*AssetSettleCancelOperation) Type() VirtualOperationType { return VopAssetSettleCancel }
func (op *AssetSettleCancelOperation) FeePayer() AccountID     { return op.Account }
func (*AssetSettleCancelOperation) isVirtualOperation()        {}

// FBADistributeOperation records a fee-backed-asset payout.
type FBADistributeOperation struct {
	Account AccountID        `cramberry:"1"`
	FBA     FBAAccumulatorID `cramberry:"2"`
	Amount  int64            `cramberry:"3"`
}

func (*FBADistributeOperation) Type() VirtualOperationType { return VopFBADistribute }
func (op *FBADistributeOperation) FeePayer() AccountID     { return op.Account }
func (*FBADistributeOperation) isVirtualOperation()        {}

// ExecuteBidOperation records a collateral bid taking over debt.
type ExecuteBidOperation struct {
	Bidder     AccountID `cramberry:"1"`
	Debt       Asset     `cramberry:"2"`
	Collateral Asset     `cramberry:"3"`
}

func (*ExecuteBidOperation) Type() VirtualOperationType { return VopExecuteBid }
func (op *ExecuteBidOperation) FeePayer() AccountID     { return op.Bidder }
func (*ExecuteBidOperation) isVirtualOperation()        {}

// EncodeVirtualOperation packs op into an envelope tagged with its
// virtual type.
func EncodeVirtualOperation(op VirtualOperation) (OperationEnvelope, error) {
	data, err := cramberry.Marshal(op)
	if err != nil {
		return OperationEnvelope{}, fmt.Errorf("encode virtual operation %v: %w", op.Type(), err)
	}
	return OperationEnvelope{Type: OperationType(op.Type()), Data: data}, nil
}

// DecodeVirtual unpacks an envelope produced by EncodeVirtualOperation.
func (e OperationEnvelope) DecodeVirtual() (VirtualOperation, error) {
	var op VirtualOperation
	switch VirtualOperationType(e.Type) {
	case VopFillOrder:
		op = new(FillOrderOperation)
	case VopAssetSettleCancel:
		op = new(AssetSettleCancelOperation)
	case VopFBADistribute:
		op = new(FBADistributeOperation)
	case VopExecuteBid:
		op = new(ExecuteBidOperation)
	default:
		return nil, fmt.Errorf("unknown virtual operation type %d", e.Type)
	}
	if err := cramberry.Unmarshal(e.Data, op); err != nil {
		return nil, fmt.Errorf("decode virtual operation %v: %w", VirtualOperationType(e.Type), err)
	}
	return op, nil
}
