package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// OperationType is the wire tag of an operation. Values are part of the
// compatibility surface: never reorder or reuse them. Tags held by
// virtual operations are listed in VirtualOperationType.
type OperationType uint16

const (
	OpTransfer                  OperationType = 0
	OpLimitOrderCreate          OperationType = 1
	OpLimitOrderCancel          OperationType = 2
	OpCallOrderUpdate           OperationType = 3
	OpAccountCreate             OperationType = 5
	OpAccountUpdate             OperationType = 6
	OpAccountUpgrade            OperationType = 7
	OpAssetCreate               OperationType = 8
	OpAssetUpdate               OperationType = 9
	OpAssetUpdateRestricted     OperationType = 10
	OpAssetUpdateBitasset       OperationType = 11
	OpAssetUpdateFeedProducers  OperationType = 12
	OpAssetIssue                OperationType = 13
	OpAssetReserve              OperationType = 14
	OpAssetFundFeePool          OperationType = 15
	OpAssetSettle               OperationType = 16
	OpAssetGlobalSettle         OperationType = 17
	OpAssetPublishFeed          OperationType = 18
	OpWitnessCreate             OperationType = 19
	OpWitnessUpdate             OperationType = 20
	OpProposalCreate            OperationType = 21
	OpProposalUpdate            OperationType = 22
	OpProposalDelete            OperationType = 23
	OpWithdrawPermissionCreate  OperationType = 24
	OpWithdrawPermissionUpdate  OperationType = 25
	OpWithdrawPermissionClaim   OperationType = 26
	OpWithdrawPermissionDelete  OperationType = 27
	OpCommitteeMemberCreate     OperationType = 28
	OpCommitteeMemberUpdate     OperationType = 29
	OpCommitteeUpdateParameters OperationType = 30
	OpVestingBalanceCreate      OperationType = 31
	OpVestingBalanceWithdraw    OperationType = 32
	OpWorkerCreate              OperationType = 33
	OpBalanceClaim              OperationType = 34
	OpTransferToBlind           OperationType = 35
	OpBlindTransfer             OperationType = 36
	OpTransferFromBlind         OperationType = 37
	OpAssetClaimFees            OperationType = 39
	OpBidCollateral             OperationType = 41
	OpContractCreate            OperationType = 43
	OpCallContractFunction      OperationType = 44
	OpTemporaryAuthorityChange  OperationType = 45
	OpRegisterNHAssetCreator    OperationType = 46
	OpCreateWorldView           OperationType = 47
	OpRelateWorldView           OperationType = 48
	OpCreateNHAsset             OperationType = 49
	OpDeleteNHAsset             OperationType = 50
	OpTransferNHAsset           OperationType = 51
	OpCreateNHAssetOrder        OperationType = 52
	OpCancelNHAssetOrder        OperationType = 53
	OpFillNHAssetOrder          OperationType = 54
	OpCreateFile                OperationType = 55
	OpAddFileRelateAccount      OperationType = 56
	OpFileSignature             OperationType = 57
	OpRelateParentFile          OperationType = 58
	OpReviseContract            OperationType = 59
	OpCrontabCreate             OperationType = 60
	OpCrontabCancel             OperationType = 61
	OpCrontabRecover            OperationType = 62
)

// VirtualOperationType tags operations the chain synthesizes internally.
// They share the numeric space of OperationType but can never appear in
// a transaction.
type VirtualOperationType uint16

const (
	VopFillOrder         VirtualOperationType = 4
	VopAssetSettleCancel VirtualOperationType = 38
	VopFBADistribute     VirtualOperationType = 40
	VopExecuteBid        VirtualOperationType = 42
)

// Operation is one user-submittable instruction. The set of
// implementations is closed.
type Operation interface {
	Type() OperationType
	FeePayer() AccountID
	FeeAmount() Asset
	// Validate performs stateless sanity checks.
	Validate() error
	isOperation()
}

// VirtualOperation is an operation synthesized by the chain itself.
type VirtualOperation interface {
	Type() VirtualOperationType
	FeePayer() AccountID
	isVirtualOperation()
}

// DataSizer is implemented by operations whose fee depends on the size
// of an embedded payload.
type DataSizer interface {
	DataSize() uint64
}

// ImpactedAccounter is implemented by operations and objects that touch
// accounts other than the fee payer.
type ImpactedAccounter interface {
	ImpactedAccounts() []AccountID
}

// OperationEnvelope is the wire form of an operation.
type OperationEnvelope struct {
	Type OperationType `cramberry:"1"`
	Data []byte        `cramberry:"2"`
}

var operationFactories = map[OperationType]func() Operation{}

func registerOperation(t OperationType, f func() Operation) {
	if _, ok := operationFactories[t]; ok {
		panic(fmt.Sprintf("operation %d registered twice", t))
	}
	operationFactories[t] = f
}

// NewOperation returns a zero operation for the tag.
func NewOperation(t OperationType) (Operation, bool) {
	f, ok := operationFactories[t]
	if !ok {
		return nil, false
	}
	return f(), true
}

// EncodeOperation packs op into its envelope.
func EncodeOperation(op Operation) (OperationEnvelope, error) {
	data, err := cramberry.Marshal(op)
	if err != nil {
		return OperationEnvelope{}, fmt.Errorf("encode operation %v: %w", op.Type(), err)
	}
	return OperationEnvelope{Type: op.Type(), Data: data}, nil
}

// MustEncodeOperation is EncodeOperation for statically known operations.
func MustEncodeOperation(op Operation) OperationEnvelope {
	env, err := EncodeOperation(op)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unpacks the envelope.
func (e OperationEnvelope) Decode() (Operation, error) {
	op, ok := NewOperation(e.Type)
	if !ok {
		return nil, fmt.Errorf("unknown operation type %d", e.Type)
	}
	if err := cramberry.Unmarshal(e.Data, op); err != nil {
		return nil, fmt.Errorf("decode operation %v: %w", e.Type, err)
	}
	return op, nil
}

// CalculateDataFee prices bytes at pricePerKByte per 1024 bytes.
func CalculateDataFee(bytes, pricePerKByte uint64) (int64, error) {
	return MulDiv(bytes, pricePerKByte, 1024)
}

// CalculateRunTimeFee prices microseconds at pricePerMillisecond.
func CalculateRunTimeFee(us, pricePerMillisecond uint64) (int64, error) {
	return MulDiv(us, pricePerMillisecond, 1000)
}

var operationNames = map[OperationType]string{
	OpTransfer:                  "transfer",
	OpLimitOrderCreate:          "limit_order_create",
	OpLimitOrderCancel:          "limit_order_cancel",
	OpCallOrderUpdate:           "call_order_update",
	OpAccountCreate:             "account_create",
	OpAccountUpdate:             "account_update",
	OpAccountUpgrade:            "account_upgrade",
	OpAssetCreate:               "asset_create",
	OpAssetUpdate:               "asset_update",
	OpAssetUpdateRestricted:     "asset_update_restricted",
	OpAssetUpdateBitasset:       "asset_update_bitasset",
	OpAssetUpdateFeedProducers:  "asset_update_feed_producers",
	OpAssetIssue:                "asset_issue",
	OpAssetReserve:              "asset_reserve",
	OpAssetFundFeePool:          "asset_fund_fee_pool",
	OpAssetSettle:               "asset_settle",
	OpAssetGlobalSettle:         "asset_global_settle",
	OpAssetPublishFeed:          "asset_publish_feed",
	OpWitnessCreate:             "witness_create",
	OpWitnessUpdate:             "witness_update",
	OpProposalCreate:            "proposal_create",
	OpProposalUpdate:            "proposal_update",
	OpProposalDelete:            "proposal_delete",
	OpWithdrawPermissionCreate:  "withdraw_permission_create",
	OpWithdrawPermissionUpdate:  "withdraw_permission_update",
	OpWithdrawPermissionClaim:   "withdraw_permission_claim",
	OpWithdrawPermissionDelete:  "withdraw_permission_delete",
	OpCommitteeMemberCreate:     "committee_member_create",
	OpCommitteeMemberUpdate:     "committee_member_update",
	OpCommitteeUpdateParameters: "committee_member_update_global_parameters",
	OpVestingBalanceCreate:      "vesting_balance_create",
	OpVestingBalanceWithdraw:    "vesting_balance_withdraw",
	OpWorkerCreate:              "worker_create",
	OpBalanceClaim:              "balance_claim",
	OpTransferToBlind:           "transfer_to_blind",
	OpBlindTransfer:             "blind_transfer",
	OpTransferFromBlind:         "transfer_from_blind",
	OpAssetClaimFees:            "asset_claim_fees",
	OpBidCollateral:             "bid_collateral",
	OpContractCreate:            "contract_create",
	OpCallContractFunction:      "call_contract_function",
	OpTemporaryAuthorityChange:  "temporary_authority_change",
	OpRegisterNHAssetCreator:    "register_nh_asset_creator",
	OpCreateWorldView:           "create_world_view",
	OpRelateWorldView:           "relate_world_view",
	OpCreateNHAsset:             "create_nh_asset",
	OpDeleteNHAsset:             "delete_nh_asset",
	OpTransferNHAsset:           "transfer_nh_asset",
	OpCreateNHAssetOrder:        "create_nh_asset_order",
	OpCancelNHAssetOrder:        "cancel_nh_asset_order",
	OpFillNHAssetOrder:          "fill_nh_asset_order",
	OpCreateFile:                "create_file",
	OpAddFileRelateAccount:      "add_file_relate_account",
	OpFileSignature:             "file_signature",
	OpRelateParentFile:          "relate_parent_file",
	OpReviseContract:            "revise_contract",
	OpCrontabCreate:             "crontab_create",
	OpCrontabCancel:             "crontab_cancel",
	OpCrontabRecover:            "crontab_recover",
}

func (t OperationType) String() string {
	if n, ok := operationNames[t]; ok {
		return n
	}
	return fmt.Sprintf("operation(%d)", uint16(t))
}

func (t VirtualOperationType) String() string {
	switch t {
	case VopFillOrder:
		return "fill_order"
	case VopAssetSettleCancel:
		return "asset_settle_cancel"
	case VopFBADistribute:
		return "fba_distribute"
	case VopExecuteBid:
		return "execute_bid"
	}
	return fmt.Sprintf("virtual_operation(%d)", uint16(t))
}

// Submittable reports whether t is a user operation tag.
func (t OperationType) Submittable() bool {
	_, ok := operationFactories[t]
	return ok
}
