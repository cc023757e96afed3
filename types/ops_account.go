package types

import (
	"errors"
	"fmt"
)

func init() {
	registerOperation(OpTransfer, func() Operation { return new(TransferOperation) })
	registerOperation(OpAccountCreate, func() Operation { return new(AccountCreateOperation) })
	registerOperation(OpAccountUpdate, func() Operation { return new(AccountUpdateOperation) })
	registerOperation(OpAccountUpgrade, func() Operation { return new(AccountUpgradeOperation) })
	registerOperation(OpVestingBalanceCreate, func() Operation { return new(VestingBalanceCreateOperation) })
	registerOperation(OpVestingBalanceWithdraw, func() Operation { return new(VestingBalanceWithdrawOperation) })
	registerOperation(OpBalanceClaim, func() Operation { return new(BalanceClaimOperation) })
	registerOperation(OpWithdrawPermissionCreate, func() Operation { return new(WithdrawPermissionCreateOperation) })
	registerOperation(OpWithdrawPermissionUpdate, func() Operation { return new(WithdrawPermissionUpdateOperation) })
	registerOperation(OpWithdrawPermissionClaim, func() Operation { return new(WithdrawPermissionClaimOperation) })
	registerOperation(OpWithdrawPermissionDelete, func() Operation { return new(WithdrawPermissionDeleteOperation) })
	registerOperation(OpTemporaryAuthorityChange, func() Operation { return new(TemporaryAuthorityChangeOperation) })
}

var errNegativeFee = errors.New("fee must not be negative")

func validateFee(fee Asset) error {
	if fee.Amount < 0 {
		return errNegativeFee
	}
	return nil
}

// TransferOperation moves an amount of one asset between accounts.
type TransferOperation struct {
	Fee    Asset     `cramberry:"1"`
	From   AccountID `cramberry:"2"`
	To     AccountID `cramberry:"3"`
	Amount Asset     `cramberry:"4"`
	Memo   []byte    `cramberry:"5"`
}

func (*TransferOperation) Type() OperationType              { return OpTransfer }
func (op *TransferOperation) FeePayer() AccountID           { return op.From }
func (op *TransferOperation) FeeAmount() Asset              { return op.Fee }
func (op *TransferOperation) DataSize() uint64              { return uint64(len(op.Memo)) }
func (*TransferOperation) isOperation()                     {}
func (op *TransferOperation) ImpactedAccounts() []AccountID { return []AccountID{op.To} }

func (op *TransferOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.From == op.To {
		return errors.New("cannot transfer to self")
	}
	if op.Amount.Amount <= 0 {
		return errors.New("transfer amount must be positive")
	}
	return nil
}

// AccountOptions are the user-controlled settings of an account.
type AccountOptions struct {
	MemoKey       PublicKey `cramberry:"1"`
	VotingAccount AccountID `cramberry:"2"`
}

// BuybackAccountOptions turns a new account into the buyback account of
// an asset.
type BuybackAccountOptions struct {
	AssetToBuy AssetID `cramberry:"1"`
}

// AccountCreateOperation registers a new account.
type AccountCreateOperation struct {
	Fee             Asset          `cramberry:"1"`
	Registrar       AccountID      `cramberry:"2"`
	Referrer        AccountID      `cramberry:"3"`
	ReferrerPercent uint16         `cramberry:"4"`
	Name            string         `cramberry:"5"`
	Owner           Authority      `cramberry:"6"`
	Active          Authority      `cramberry:"7"`
	Options         AccountOptions `cramberry:"8"`
	// Optional extensions.
	OwnerSpecialAuthority  *TopHoldersAuthority   `cramberry:"9"`
	ActiveSpecialAuthority *TopHoldersAuthority   `cramberry:"10"`
	BuybackOptions         *BuybackAccountOptions `cramberry:"11"`
}

func (*AccountCreateOperation) Type() OperationType    { return OpAccountCreate }
func (op *AccountCreateOperation) FeePayer() AccountID { return op.Registrar }
func (op *AccountCreateOperation) FeeAmount() Asset    { return op.Fee }
func (op *AccountCreateOperation) DataSize() uint64    { return uint64(len(op.Name)) }
func (*AccountCreateOperation) isOperation()           {}
func (op *AccountCreateOperation) ImpactedAccounts() []AccountID {
	return []AccountID{op.Referrer}
}

func (op *AccountCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if !IsValidAccountName(op.Name) {
		return fmt.Errorf("invalid account name %q", op.Name)
	}
	if op.ReferrerPercent > uint16(Percent100) {
		return errors.New("referrer percent exceeds 100%")
	}
	if op.Owner.IsImpossible() || op.Active.IsImpossible() {
		return errors.New("authority threshold cannot be met")
	}
	if op.OwnerSpecialAuthority != nil && op.OwnerSpecialAuthority.NumTopHolders == 0 {
		return errors.New("top holders authority needs at least one holder")
	}
	if op.ActiveSpecialAuthority != nil && op.ActiveSpecialAuthority.NumTopHolders == 0 {
		return errors.New("top holders authority needs at least one holder")
	}
	return nil
}

// IsValidAccountName checks the name grammar: 3-63 characters of
// lowercase letters, digits and dashes, starting with a letter.
func IsValidAccountName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case (c >= '0' && c <= '9') || c == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return name[len(name)-1] != '-'
}

// AccountUpdateOperation replaces the authorities or options of an account.
type AccountUpdateOperation struct {
	Fee        Asset           `cramberry:"1"`
	Account    AccountID       `cramberry:"2"`
	Owner      *Authority      `cramberry:"3"`
	Active     *Authority      `cramberry:"4"`
	NewOptions *AccountOptions `cramberry:"5"`
}

func (*AccountUpdateOperation) Type() OperationType    { return OpAccountUpdate }
func (op *AccountUpdateOperation) FeePayer() AccountID { return op.Account }
func (op *AccountUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*AccountUpdateOperation) isOperation()           {}

func (op *AccountUpdateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Owner == nil && op.Active == nil && op.NewOptions == nil {
		return errors.New("account update changes nothing")
	}
	return nil
}

// AccountUpgradeOperation upgrades an account to lifetime membership.
type AccountUpgradeOperation struct {
	Fee                     Asset     `cramberry:"1"`
	AccountToUpgrade        AccountID `cramberry:"2"`
	UpgradeToLifetimeMember bool      `cramberry:"3"`
}

func (*AccountUpgradeOperation) Type() OperationType    { return OpAccountUpgrade }
func (op *AccountUpgradeOperation) FeePayer() AccountID { return op.AccountToUpgrade }
func (op *AccountUpgradeOperation) FeeAmount() Asset    { return op.Fee }
func (*AccountUpgradeOperation) isOperation()           {}
func (op *AccountUpgradeOperation) Validate() error     { return validateFee(op.Fee) }

// LinearVestingPolicyInitializer configures a linear vesting balance.
type LinearVestingPolicyInitializer struct {
	BeginTimestamp         TimePoint `cramberry:"1"`
	VestingCliffSeconds    uint32    `cramberry:"2"`
	VestingDurationSeconds uint32    `cramberry:"3"`
}

// CDDVestingPolicyInitializer configures a coin-days-destroyed balance.
type CDDVestingPolicyInitializer struct {
	StartClaim     TimePoint `cramberry:"1"`
	VestingSeconds uint32    `cramberry:"2"`
}

// VestingPolicyInitializer selects exactly one policy.
type VestingPolicyInitializer struct {
	Linear *LinearVestingPolicyInitializer `cramberry:"1"`
	CDD    *CDDVestingPolicyInitializer    `cramberry:"2"`
}

// VestingBalanceCreateOperation locks funds of the creator into a new
// vesting balance owned by Owner.
type VestingBalanceCreateOperation struct {
	Fee     Asset                    `cramberry:"1"`
	Creator AccountID                `cramberry:"2"`
	Owner   AccountID                `cramberry:"3"`
	Amount  Asset                    `cramberry:"4"`
	Policy  VestingPolicyInitializer `cramberry:"5"`
}

func (*VestingBalanceCreateOperation) Type() OperationType    { return OpVestingBalanceCreate }
func (op *VestingBalanceCreateOperation) FeePayer() AccountID { return op.Creator }
func (op *VestingBalanceCreateOperation) FeeAmount() Asset    { return op.Fee }
func (*VestingBalanceCreateOperation) isOperation()           {}
func (op *VestingBalanceCreateOperation) ImpactedAccounts() []AccountID {
	return []AccountID{op.Owner}
}

func (op *VestingBalanceCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Amount.Amount <= 0 {
		return errors.New("vesting amount must be positive")
	}
	if (op.Policy.Linear == nil) == (op.Policy.CDD == nil) {
		return errors.New("exactly one vesting policy must be set")
	}
	if l := op.Policy.Linear; l != nil && l.VestingDurationSeconds == 0 {
		return errors.New("linear vesting duration must be positive")
	}
	return nil
}

// VestingBalanceWithdrawOperation withdraws vested funds.
type VestingBalanceWithdrawOperation struct {
	Fee            Asset            `cramberry:"1"`
	VestingBalance VestingBalanceID `cramberry:"2"`
	Owner          AccountID        `cramberry:"3"`
	Amount         Asset            `cramberry:"4"`
}

func (*VestingBalanceWithdrawOperation) Type() OperationType    { return OpVestingBalanceWithdraw }
func (op *VestingBalanceWithdrawOperation) FeePayer() AccountID { return op.Owner }
func (op *VestingBalanceWithdrawOperation) FeeAmount() Asset    { return op.Fee }
func (*VestingBalanceWithdrawOperation) isOperation()           {}

func (op *VestingBalanceWithdrawOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Amount.Amount <= 0 {
		return errors.New("withdraw amount must be positive")
	}
	return nil
}

// BalanceClaimOperation claims a genesis balance.
type BalanceClaimOperation struct {
	Fee              Asset     `cramberry:"1"`
	DepositToAccount AccountID `cramberry:"2"`
	BalanceToClaim   ObjectID  `cramberry:"3"`
	BalanceOwnerKey  PublicKey `cramberry:"4"`
	TotalClaimed     Asset     `cramberry:"5"`
}

func (*BalanceClaimOperation) Type() OperationType    { return OpBalanceClaim }
func (op *BalanceClaimOperation) FeePayer() AccountID { return op.DepositToAccount }
func (op *BalanceClaimOperation) FeeAmount() Asset    { return op.Fee }
func (*BalanceClaimOperation) isOperation()           {}

func (op *BalanceClaimOperation) Validate() error {
	if op.Fee.Amount != 0 {
		return errors.New("balance claims carry no fee")
	}
	if op.TotalClaimed.Amount <= 0 {
		return errors.New("claimed amount must be positive")
	}
	return nil
}

// WithdrawPermissionCreateOperation authorizes periodic withdrawals.
type WithdrawPermissionCreateOperation struct {
	Fee                    Asset     `cramberry:"1"`
	WithdrawFromAccount    AccountID `cramberry:"2"`
	AuthorizedAccount      AccountID `cramberry:"3"`
	WithdrawalLimit        Asset     `cramberry:"4"`
	WithdrawalPeriodSec    uint32    `cramberry:"5"`
	PeriodsUntilExpiration uint32    `cramberry:"6"`
	PeriodStartTime        TimePoint `cramberry:"7"`
}

func (*WithdrawPermissionCreateOperation) Type() OperationType    { return OpWithdrawPermissionCreate }
func (op *WithdrawPermissionCreateOperation) FeePayer() AccountID { return op.WithdrawFromAccount }
func (op *WithdrawPermissionCreateOperation) FeeAmount() Asset    { return op.Fee }
func (*WithdrawPermissionCreateOperation) isOperation()           {}

func (op *WithdrawPermissionCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.WithdrawFromAccount == op.AuthorizedAccount {
		return errors.New("cannot authorize self")
	}
	if op.WithdrawalLimit.Amount <= 0 || op.WithdrawalPeriodSec == 0 || op.PeriodsUntilExpiration == 0 {
		return errors.New("invalid withdrawal schedule")
	}
	return nil
}

// WithdrawPermissionUpdateOperation changes a withdrawal permission.
type WithdrawPermissionUpdateOperation struct {
	Fee                    Asset     `cramberry:"1"`
	WithdrawFromAccount    AccountID `cramberry:"2"`
	AuthorizedAccount      AccountID `cramberry:"3"`
	PermissionToUpdate     ObjectID  `cramberry:"4"`
	WithdrawalLimit        Asset     `cramberry:"5"`
	WithdrawalPeriodSec    uint32    `cramberry:"6"`
	PeriodStartTime        TimePoint `cramberry:"7"`
	PeriodsUntilExpiration uint32    `cramberry:"8"`
}

func (*WithdrawPermissionUpdateOperation) Type() OperationType    { return OpWithdrawPermissionUpdate }
func (op *WithdrawPermissionUpdateOperation) FeePayer() AccountID { return op.WithdrawFromAccount }
func (op *WithdrawPermissionUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*WithdrawPermissionUpdateOperation) isOperation()           {}
func (op *WithdrawPermissionUpdateOperation) Validate() error     { return validateFee(op.Fee) }

// WithdrawPermissionClaimOperation withdraws under a permission.
type WithdrawPermissionClaimOperation struct {
	Fee                 Asset     `cramberry:"1"`
	WithdrawPermission  ObjectID  `cramberry:"2"`
	WithdrawFromAccount AccountID `cramberry:"3"`
	WithdrawToAccount   AccountID `cramberry:"4"`
	AmountToWithdraw    Asset     `cramberry:"5"`
}

func (*WithdrawPermissionClaimOperation) Type() OperationType    { return OpWithdrawPermissionClaim }
func (op *WithdrawPermissionClaimOperation) FeePayer() AccountID { return op.WithdrawToAccount }
func (op *WithdrawPermissionClaimOperation) FeeAmount() Asset    { return op.Fee }
func (*WithdrawPermissionClaimOperation) isOperation()           {}

func (op *WithdrawPermissionClaimOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.AmountToWithdraw.Amount <= 0 {
		return errors.New("withdraw amount must be positive")
	}
	return nil
}

// WithdrawPermissionDeleteOperation revokes a permission.
type WithdrawPermissionDeleteOperation struct {
	Fee                  Asset     `cramberry:"1"`
	WithdrawFromAccount  AccountID `cramberry:"2"`
	AuthorizedAccount    AccountID `cramberry:"3"`
	WithdrawalPermission ObjectID  `cramberry:"4"`
}

func (*WithdrawPermissionDeleteOperation) Type() OperationType    { return OpWithdrawPermissionDelete }
func (op *WithdrawPermissionDeleteOperation) FeePayer() AccountID { return op.WithdrawFromAccount }
func (op *WithdrawPermissionDeleteOperation) FeeAmount() Asset    { return op.Fee }
func (*WithdrawPermissionDeleteOperation) isOperation()           {}
func (op *WithdrawPermissionDeleteOperation) Validate() error     { return validateFee(op.Fee) }

// TemporaryAuthorityChangeOperation installs a time-limited key.
type TemporaryAuthorityChangeOperation struct {
	Fee        Asset     `cramberry:"1"`
	Owner      AccountID `cramberry:"2"`
	Key        PublicKey `cramberry:"3"`
	Expiration TimePoint `cramberry:"4"`
}

func (*TemporaryAuthorityChangeOperation) Type() OperationType    { return OpTemporaryAuthorityChange }
func (op *TemporaryAuthorityChangeOperation) FeePayer() AccountID { return op.Owner }
func (op *TemporaryAuthorityChangeOperation) FeeAmount() Asset    { return op.Fee }
func (*TemporaryAuthorityChangeOperation) isOperation()           {}

func (op *TemporaryAuthorityChangeOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if len(op.Key) == 0 {
		return errors.New("temporary key must be set")
	}
	return nil
}
