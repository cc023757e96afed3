package types

import (
	"errors"
	"fmt"
	"sort"
)

// FeeParameters is the fee record of one operation type.
type FeeParameters struct {
	Operation           OperationType `cramberry:"1"`
	Fee                 uint64        `cramberry:"2"`
	PricePerKByte       uint64        `cramberry:"3"`
	PricePerMillisecond uint64        `cramberry:"4"`
}

// FeeSchedule holds the per-operation fee records, sorted by operation
// type, plus the global scale and the contract handling-fee ceiling.
type FeeSchedule struct {
	Parameters []FeeParameters `cramberry:"1"`
	// Scale in parts of Percent100.
	Scale              uint32 `cramberry:"2"`
	MaximumHandlingFee int64  `cramberry:"3"`
}

// Lookup returns the parameters of t, or zero fees if none are set.
func (s FeeSchedule) Lookup(t OperationType) FeeParameters {
	i := sort.Search(len(s.Parameters), func(i int) bool { return s.Parameters[i].Operation >= t })
	if i < len(s.Parameters) && s.Parameters[i].Operation == t {
		return s.Parameters[i]
	}
	return FeeParameters{Operation: t}
}

// Set inserts or replaces the parameters of p.Operation keeping the
// schedule sorted.
func (s *FeeSchedule) Set(p FeeParameters) {
	i := sort.Search(len(s.Parameters), func(i int) bool { return s.Parameters[i].Operation >= p.Operation })
	if i < len(s.Parameters) && s.Parameters[i].Operation == p.Operation {
		s.Parameters[i] = p
		return
	}
	s.Parameters = append(s.Parameters, FeeParameters{})
	copy(s.Parameters[i+1:], s.Parameters[i:])
	s.Parameters[i] = p
}

// DefaultFeeSchedule returns the schedule used by fresh chains.
func DefaultFeeSchedule() FeeSchedule {
	p := uint64(BlockchainPrecision)
	s := FeeSchedule{Scale: uint32(Percent100), MaximumHandlingFee: 2000 * BlockchainPrecision}
	s.Set(FeeParameters{Operation: OpTransfer, Fee: 20 * p, PricePerKByte: 10 * p})
	s.Set(FeeParameters{Operation: OpAccountCreate, Fee: 5 * p, PricePerKByte: p})
	s.Set(FeeParameters{Operation: OpAssetCreate, Fee: 500 * p, PricePerKByte: 10 * p})
	s.Set(FeeParameters{Operation: OpAssetIssue, Fee: 20 * p, PricePerKByte: 10 * p})
	s.Set(FeeParameters{Operation: OpProposalCreate, Fee: 20 * p, PricePerKByte: 10 * p})
	s.Set(FeeParameters{Operation: OpVestingBalanceCreate, Fee: 5 * p})
	s.Set(FeeParameters{Operation: OpContractCreate, Fee: 20 * p, PricePerKByte: 10 * p})
	s.Set(FeeParameters{Operation: OpCallContractFunction, Fee: 20 * p, PricePerKByte: 10 * p, PricePerMillisecond: 10 * p})
	s.Set(FeeParameters{Operation: OpCrontabCreate, Fee: 20 * p, PricePerKByte: 10 * p})
	s.Set(FeeParameters{Operation: OpTransferToBlind, Fee: 5 * p})
	s.Set(FeeParameters{Operation: OpBlindTransfer, Fee: 5 * p})
	s.Set(FeeParameters{Operation: OpTransferFromBlind, Fee: 5 * p})
	return s
}

// ChainParameters are the chain-governed knobs. They change only through
// committee_member_update_global_parameters.
type ChainParameters struct {
	CurrentFees FeeSchedule `cramberry:"1"`
	// Seconds between blocks.
	BlockInterval uint8 `cramberry:"2"`
	// Seconds between maintenance passes.
	MaintenanceInterval        uint32 `cramberry:"3"`
	MaintenanceSkipSlots       uint8  `cramberry:"4"`
	MaximumTransactionSize     uint32 `cramberry:"5"`
	MaximumBlockSize           uint32 `cramberry:"6"`
	MaximumTimeUntilExpiration uint32 `cramberry:"7"`
	MaximumProposalLifetime    uint32 `cramberry:"8"`
	// Per-operation run time budget in Percent1 units of the block interval.
	MaximumRunTimeRatio uint16 `cramberry:"9"`
	// Microseconds of budget per second of block interval per percent.
	TimeoutMagnification           uint32 `cramberry:"10"`
	AssignedTaskLifeCycle          uint32 `cramberry:"11"`
	CrontabSuspendThreshold        uint32 `cramberry:"12"`
	CrontabSuspendExpiration       uint32 `cramberry:"13"`
	CashbackVestingPeriodSeconds   uint32 `cramberry:"14"`
	CashbackVestingThreshold       int64  `cramberry:"15"`
	NetworkPercentOfFee            uint16 `cramberry:"16"`
	WitnessPayPerBlock             int64  `cramberry:"17"`
	CommitteeProposalReviewPeriod  uint32 `cramberry:"18"`
	MaximumCrontabLifetime         uint32 `cramberry:"19"`
	MaximumAssignedTaskLifeCycle   uint32 `cramberry:"20"`
	MaximumTransactionRunTimeRatio uint16 `cramberry:"21"`
	WitnessPayVestingSeconds       uint32 `cramberry:"22"`
}

// DefaultChainParameters returns the parameters of a fresh chain.
func DefaultChainParameters() ChainParameters {
	return ChainParameters{
		CurrentFees:                    DefaultFeeSchedule(),
		BlockInterval:                  5,
		MaintenanceInterval:            86400,
		MaintenanceSkipSlots:           3,
		MaximumTransactionSize:         2048 * 1024 / 50,
		MaximumBlockSize:               2048 * 1024,
		MaximumTimeUntilExpiration:     86400,
		MaximumProposalLifetime:        2419200,
		MaximumRunTimeRatio:            2500,
		TimeoutMagnification:           10000,
		AssignedTaskLifeCycle:          3600,
		CrontabSuspendThreshold:        3,
		CrontabSuspendExpiration:       86400 * 3,
		CashbackVestingPeriodSeconds:   86400 * 365,
		CashbackVestingThreshold:       100 * BlockchainPrecision,
		NetworkPercentOfFee:            2000,
		WitnessPayPerBlock:             BlockchainPrecision,
		CommitteeProposalReviewPeriod:  86400,
		MaximumCrontabLifetime:         2592000,
		MaximumAssignedTaskLifeCycle:   7200,
		MaximumTransactionRunTimeRatio: 7500,
		WitnessPayVestingSeconds:       86400,
	}
}

// Validate checks the invariants a parameter update must keep.
func (p ChainParameters) Validate() error {
	switch {
	case p.BlockInterval == 0:
		return errors.New("block interval must be positive")
	case p.MaintenanceInterval == 0 || p.MaintenanceInterval%uint32(p.BlockInterval) != 0:
		return errors.New("maintenance interval must be a positive multiple of the block interval")
	case p.MaximumBlockSize < p.MaximumTransactionSize:
		return errors.New("maximum block size must hold a maximum size transaction")
	case p.MaximumRunTimeRatio == 0 || p.MaximumRunTimeRatio > uint16(Percent100):
		return fmt.Errorf("maximum run time ratio %d out of range", p.MaximumRunTimeRatio)
	case p.MaximumTransactionRunTimeRatio < p.MaximumRunTimeRatio || p.MaximumTransactionRunTimeRatio > uint16(Percent100):
		return fmt.Errorf("maximum transaction run time ratio %d out of range", p.MaximumTransactionRunTimeRatio)
	case p.TimeoutMagnification == 0:
		return errors.New("timeout magnification must be positive")
	case p.NetworkPercentOfFee > uint16(Percent100):
		return errors.New("network percent of fee exceeds 100%")
	case p.CurrentFees.Scale == 0:
		return errors.New("fee scale must be positive")
	case p.CurrentFees.MaximumHandlingFee <= 0:
		return errors.New("maximum handling fee must be positive")
	}
	return nil
}
