package types

import (
	"errors"
	"fmt"
)

func init() {
	registerOperation(OpWitnessCreate, func() Operation { return new(WitnessCreateOperation) })
	registerOperation(OpWitnessUpdate, func() Operation { return new(WitnessUpdateOperation) })
	registerOperation(OpProposalCreate, func() Operation { return new(ProposalCreateOperation) })
	registerOperation(OpProposalUpdate, func() Operation { return new(ProposalUpdateOperation) })
	registerOperation(OpProposalDelete, func() Operation { return new(ProposalDeleteOperation) })
	registerOperation(OpCommitteeMemberCreate, func() Operation { return new(CommitteeMemberCreateOperation) })
	registerOperation(OpCommitteeMemberUpdate, func() Operation { return new(CommitteeMemberUpdateOperation) })
	registerOperation(OpCommitteeUpdateParameters, func() Operation { return new(CommitteeUpdateParametersOperation) })
	registerOperation(OpWorkerCreate, func() Operation { return new(WorkerCreateOperation) })
}

// WitnessCreateOperation registers a block producer.
type WitnessCreateOperation struct {
	Fee             Asset     `cramberry:"1"`
	WitnessAccount  AccountID `cramberry:"2"`
	URL             string    `cramberry:"3"`
	BlockSigningKey PublicKey `cramberry:"4"`
}

func (*WitnessCreateOperation) Type() OperationType    { return OpWitnessCreate }
func (op *WitnessCreateOperation) FeePayer() AccountID { return op.WitnessAccount }
func (op *WitnessCreateOperation) FeeAmount() Asset    { return op.Fee }
func (op *WitnessCreateOperation) DataSize() uint64    { return uint64(len(op.URL)) }
func (*WitnessCreateOperation) isOperation()           {}
func (op *WitnessCreateOperation) Validate() error     { return validateFee(op.Fee) }

// WitnessUpdateOperation changes a witness URL or signing key.
type WitnessUpdateOperation struct {
	Fee            Asset     `cramberry:"1"`
	Witness        WitnessID `cramberry:"2"`
	WitnessAccount AccountID `cramberry:"3"`
	NewURL         *string   `cramberry:"4"`
	NewSigningKey  PublicKey `cramberry:"5"`
}

func (*WitnessUpdateOperation) Type() OperationType    { return OpWitnessUpdate }
func (op *WitnessUpdateOperation) FeePayer() AccountID { return op.WitnessAccount }
func (op *WitnessUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*WitnessUpdateOperation) isOperation()           {}
func (op *WitnessUpdateOperation) Validate() error     { return validateFee(op.Fee) }

// ProposalCreateOperation wraps a batch of operations to run once the
// required approvals are gathered.
type ProposalCreateOperation struct {
	Fee              Asset               `cramberry:"1"`
	FeePayingAccount AccountID           `cramberry:"2"`
	ExpirationTime   TimePoint           `cramberry:"3"`
	ProposedOps      []OperationEnvelope `cramberry:"4"`
	// ReviewPeriodSeconds, when set, bars execution before the
	// proposal is within this many seconds of expiring.
	ReviewPeriodSeconds *uint32 `cramberry:"5"`
}

func (*ProposalCreateOperation) Type() OperationType    { return OpProposalCreate }
func (op *ProposalCreateOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *ProposalCreateOperation) FeeAmount() Asset    { return op.Fee }
func (*ProposalCreateOperation) isOperation()           {}

func (op *ProposalCreateOperation) DataSize() uint64 {
	var n uint64
	for _, env := range op.ProposedOps {
		n += uint64(len(env.Data))
	}
	return n
}

func (op *ProposalCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if len(op.ProposedOps) == 0 {
		return errors.New("proposal must contain at least one operation")
	}
	for i, env := range op.ProposedOps {
		inner, err := env.Decode()
		if err != nil {
			return fmt.Errorf("proposed op %d: %w", i, err)
		}
		if err := inner.Validate(); err != nil {
			return fmt.Errorf("proposed op %d: %w", i, err)
		}
	}
	return nil
}

// ProposalUpdateOperation adds or removes approvals on a proposal.
type ProposalUpdateOperation struct {
	Fee                     Asset       `cramberry:"1"`
	FeePayingAccount        AccountID   `cramberry:"2"`
	Proposal                ProposalID  `cramberry:"3"`
	ActiveApprovalsToAdd    []AccountID `cramberry:"4"`
	ActiveApprovalsToRemove []AccountID `cramberry:"5"`
	OwnerApprovalsToAdd     []AccountID `cramberry:"6"`
	OwnerApprovalsToRemove  []AccountID `cramberry:"7"`
	KeyApprovalsToAdd       []PublicKey `cramberry:"8"`
	KeyApprovalsToRemove    []PublicKey `cramberry:"9"`
}

func (*ProposalUpdateOperation) Type() OperationType    { return OpProposalUpdate }
func (op *ProposalUpdateOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *ProposalUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*ProposalUpdateOperation) isOperation()           {}

func (op *ProposalUpdateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if len(op.ActiveApprovalsToAdd)+len(op.ActiveApprovalsToRemove)+
		len(op.OwnerApprovalsToAdd)+len(op.OwnerApprovalsToRemove)+
		len(op.KeyApprovalsToAdd)+len(op.KeyApprovalsToRemove) == 0 {
		return errors.New("proposal update changes nothing")
	}
	for _, a := range op.ActiveApprovalsToAdd {
		for _, r := range op.ActiveApprovalsToRemove {
			if a == r {
				return fmt.Errorf("account %v both added and removed", a)
			}
		}
	}
	for _, a := range op.OwnerApprovalsToAdd {
		for _, r := range op.OwnerApprovalsToRemove {
			if a == r {
				return fmt.Errorf("account %v both added and removed", a)
			}
		}
	}
	return nil
}

// RequiredAuthorities returns the authorities whose approval the update
// asserts.
func (op *ProposalUpdateOperation) RequiredAuthorities() RequiredAuthorities {
	var r RequiredAuthorities
	r.Active = append(r.Active, op.ActiveApprovalsToAdd...)
	r.Active = append(r.Active, op.ActiveApprovalsToRemove...)
	r.Owner = append(r.Owner, op.OwnerApprovalsToAdd...)
	r.Owner = append(r.Owner, op.OwnerApprovalsToRemove...)
	return r
}

// ProposalDeleteOperation vetoes a proposal.
type ProposalDeleteOperation struct {
	Fee                 Asset      `cramberry:"1"`
	FeePayingAccount    AccountID  `cramberry:"2"`
	UsingOwnerAuthority bool       `cramberry:"3"`
	Proposal            ProposalID `cramberry:"4"`
}

func (*ProposalDeleteOperation) Type() OperationType    { return OpProposalDelete }
func (op *ProposalDeleteOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *ProposalDeleteOperation) FeeAmount() Asset    { return op.Fee }
func (*ProposalDeleteOperation) isOperation()           {}
func (op *ProposalDeleteOperation) Validate() error     { return validateFee(op.Fee) }

// CommitteeMemberCreateOperation registers a committee candidate.
type CommitteeMemberCreateOperation struct {
	Fee                    Asset     `cramberry:"1"`
	CommitteeMemberAccount AccountID `cramberry:"2"`
	URL                    string    `cramberry:"3"`
}

func (*CommitteeMemberCreateOperation) Type() OperationType    { return OpCommitteeMemberCreate }
func (op *CommitteeMemberCreateOperation) FeePayer() AccountID { return op.CommitteeMemberAccount }
func (op *CommitteeMemberCreateOperation) FeeAmount() Asset    { return op.Fee }
func (op *CommitteeMemberCreateOperation) DataSize() uint64    { return uint64(len(op.URL)) }
func (*CommitteeMemberCreateOperation) isOperation()           {}
func (op *CommitteeMemberCreateOperation) Validate() error     { return validateFee(op.Fee) }

// CommitteeMemberUpdateOperation changes a committee member URL.
type CommitteeMemberUpdateOperation struct {
	Fee                    Asset     `cramberry:"1"`
	CommitteeMember        ObjectID  `cramberry:"2"`
	CommitteeMemberAccount AccountID `cramberry:"3"`
	NewURL                 *string   `cramberry:"4"`
}

func (*CommitteeMemberUpdateOperation) Type() OperationType    { return OpCommitteeMemberUpdate }
func (op *CommitteeMemberUpdateOperation) FeePayer() AccountID { return op.CommitteeMemberAccount }
func (op *CommitteeMemberUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*CommitteeMemberUpdateOperation) isOperation()           {}
func (op *CommitteeMemberUpdateOperation) Validate() error     { return validateFee(op.Fee) }

// CommitteeUpdateParametersOperation replaces the chain parameters at the
// next maintenance. It is only valid inside a proposal.
type CommitteeUpdateParametersOperation struct {
	Fee           Asset           `cramberry:"1"`
	NewParameters ChainParameters `cramberry:"2"`
}

func (*CommitteeUpdateParametersOperation) Type() OperationType { return OpCommitteeUpdateParameters }
func (*CommitteeUpdateParametersOperation) FeePayer() AccountID { return CommitteeAccount }
func (op *CommitteeUpdateParametersOperation) FeeAmount() Asset { return op.Fee }
func (*CommitteeUpdateParametersOperation) isOperation()        {}

func (op *CommitteeUpdateParametersOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	return op.NewParameters.Validate()
}

// WorkerCreateOperation proposes a paid worker.
type WorkerCreateOperation struct {
	Fee           Asset     `cramberry:"1"`
	Owner         AccountID `cramberry:"2"`
	WorkBeginDate TimePoint `cramberry:"3"`
	WorkEndDate   TimePoint `cramberry:"4"`
	DailyPay      int64     `cramberry:"5"`
	Name          string    `cramberry:"6"`
	URL           string    `cramberry:"7"`
}

func (*WorkerCreateOperation) Type() OperationType    { return OpWorkerCreate }
func (op *WorkerCreateOperation) FeePayer() AccountID { return op.Owner }
func (op *WorkerCreateOperation) FeeAmount() Asset    { return op.Fee }
func (*WorkerCreateOperation) isOperation()           {}

func (op *WorkerCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.WorkEndDate <= op.WorkBeginDate {
		return errors.New("work must end after it begins")
	}
	if op.DailyPay <= 0 {
		return errors.New("daily pay must be positive")
	}
	return nil
}
