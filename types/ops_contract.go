package types

import (
	"errors"
	"fmt"
)

func init() {
	registerOperation(OpContractCreate, func() Operation { return new(ContractCreateOperation) })
	registerOperation(OpCallContractFunction, func() Operation { return new(CallContractFunctionOperation) })
	registerOperation(OpReviseContract, func() Operation { return new(ReviseContractOperation) })
	registerOperation(OpRegisterNHAssetCreator, func() Operation { return new(RegisterNHAssetCreatorOperation) })
	registerOperation(OpCreateWorldView, func() Operation { return new(CreateWorldViewOperation) })
	registerOperation(OpRelateWorldView, func() Operation { return new(RelateWorldViewOperation) })
	registerOperation(OpCreateNHAsset, func() Operation { return new(CreateNHAssetOperation) })
	registerOperation(OpDeleteNHAsset, func() Operation { return new(DeleteNHAssetOperation) })
	registerOperation(OpTransferNHAsset, func() Operation { return new(TransferNHAssetOperation) })
	registerOperation(OpCreateNHAssetOrder, func() Operation { return new(CreateNHAssetOrderOperation) })
	registerOperation(OpCancelNHAssetOrder, func() Operation { return new(CancelNHAssetOrderOperation) })
	registerOperation(OpFillNHAssetOrder, func() Operation { return new(FillNHAssetOrderOperation) })
	registerOperation(OpCreateFile, func() Operation { return new(CreateFileOperation) })
	registerOperation(OpAddFileRelateAccount, func() Operation { return new(AddFileRelateAccountOperation) })
	registerOperation(OpFileSignature, func() Operation { return new(FileSignatureOperation) })
	registerOperation(OpRelateParentFile, func() Operation { return new(RelateParentFileOperation) })
	registerOperation(OpCrontabCreate, func() Operation { return new(CrontabCreateOperation) })
	registerOperation(OpCrontabCancel, func() Operation { return new(CrontabCancelOperation) })
	registerOperation(OpCrontabRecover, func() Operation { return new(CrontabRecoverOperation) })
}

// MaxContractNameLength bounds contract names.
const MaxContractNameLength = 63

// ContractCreateOperation deploys script code under a new contract object.
type ContractCreateOperation struct {
	Fee               Asset     `cramberry:"1"`
	Owner             AccountID `cramberry:"2"`
	Name              string    `cramberry:"3"`
	Code              []byte    `cramberry:"4"`
	ContractAuthority PublicKey `cramberry:"5"`
}

func (*ContractCreateOperation) Type() OperationType    { return OpContractCreate }
func (op *ContractCreateOperation) FeePayer() AccountID { return op.Owner }
func (op *ContractCreateOperation) FeeAmount() Asset    { return op.Fee }
func (op *ContractCreateOperation) DataSize() uint64    { return uint64(len(op.Code) + len(op.Name)) }
func (*ContractCreateOperation) isOperation()           {}

func (op *ContractCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Name == "" || len(op.Name) > MaxContractNameLength {
		return fmt.Errorf("contract name length %d out of range", len(op.Name))
	}
	if len(op.Code) == 0 {
		return errors.New("contract code is empty")
	}
	return nil
}

// CallContractFunctionOperation invokes an exported function of a contract.
type CallContractFunctionOperation struct {
	Fee          Asset      `cramberry:"1"`
	Caller       AccountID  `cramberry:"2"`
	ContractID   ContractID `cramberry:"3"`
	FunctionName string     `cramberry:"4"`
	// Args are script values in the engine's own encoding.
	Args [][]byte `cramberry:"5"`
}

func (*CallContractFunctionOperation) Type() OperationType    { return OpCallContractFunction }
func (op *CallContractFunctionOperation) FeePayer() AccountID { return op.Caller }
func (op *CallContractFunctionOperation) FeeAmount() Asset    { return op.Fee }
func (*CallContractFunctionOperation) isOperation()           {}

func (op *CallContractFunctionOperation) DataSize() uint64 {
	n := uint64(len(op.FunctionName))
	for _, a := range op.Args {
		n += uint64(len(a))
	}
	return n
}

func (op *CallContractFunctionOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.FunctionName == "" {
		return errors.New("function name is empty")
	}
	return nil
}

// ReviseContractOperation replaces the code of a contract.
type ReviseContractOperation struct {
	Fee        Asset      `cramberry:"1"`
	Reviser    AccountID  `cramberry:"2"`
	ContractID ContractID `cramberry:"3"`
	Code       []byte     `cramberry:"4"`
}

func (*ReviseContractOperation) Type() OperationType    { return OpReviseContract }
func (op *ReviseContractOperation) FeePayer() AccountID { return op.Reviser }
func (op *ReviseContractOperation) FeeAmount() Asset    { return op.Fee }
func (op *ReviseContractOperation) DataSize() uint64    { return uint64(len(op.Code)) }
func (*ReviseContractOperation) isOperation()           {}

func (op *ReviseContractOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if len(op.Code) == 0 {
		return errors.New("contract code is empty")
	}
	return nil
}

// RegisterNHAssetCreatorOperation registers an account as a creator of
// non-homogeneous assets.
type RegisterNHAssetCreatorOperation struct {
	Fee              Asset     `cramberry:"1"`
	FeePayingAccount AccountID `cramberry:"2"`
}

func (*RegisterNHAssetCreatorOperation) Type() OperationType    { return OpRegisterNHAssetCreator }
func (op *RegisterNHAssetCreatorOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *RegisterNHAssetCreatorOperation) FeeAmount() Asset    { return op.Fee }
func (*RegisterNHAssetCreatorOperation) isOperation()           {}
func (op *RegisterNHAssetCreatorOperation) Validate() error     { return validateFee(op.Fee) }

// CreateWorldViewOperation creates a named world view.
type CreateWorldViewOperation struct {
	Fee              Asset     `cramberry:"1"`
	FeePayingAccount AccountID `cramberry:"2"`
	WorldView        string    `cramberry:"3"`
}

func (*CreateWorldViewOperation) Type() OperationType    { return OpCreateWorldView }
func (op *CreateWorldViewOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *CreateWorldViewOperation) FeeAmount() Asset    { return op.Fee }
func (*CreateWorldViewOperation) isOperation()           {}
func (op *CreateWorldViewOperation) Validate() error     { return validateFee(op.Fee) }

// RelateWorldViewOperation links an account to a world view.
type RelateWorldViewOperation struct {
	Fee            Asset     `cramberry:"1"`
	RelatedAccount AccountID `cramberry:"2"`
	WorldView      string    `cramberry:"3"`
	ViewOwner      AccountID `cramberry:"4"`
}

func (*RelateWorldViewOperation) Type() OperationType    { return OpRelateWorldView }
func (op *RelateWorldViewOperation) FeePayer() AccountID { return op.RelatedAccount }
func (op *RelateWorldViewOperation) FeeAmount() Asset    { return op.Fee }
func (*RelateWorldViewOperation) isOperation()           {}
func (op *RelateWorldViewOperation) Validate() error     { return validateFee(op.Fee) }

// CreateNHAssetOperation mints a non-homogeneous asset.
type CreateNHAssetOperation struct {
	Fee              Asset     `cramberry:"1"`
	FeePayingAccount AccountID `cramberry:"2"`
	Owner            AccountID `cramberry:"3"`
	AssetSymbol      string    `cramberry:"4"`
	WorldView        string    `cramberry:"5"`
	BaseDescribe     string    `cramberry:"6"`
}

func (*CreateNHAssetOperation) Type() OperationType    { return OpCreateNHAsset }
func (op *CreateNHAssetOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *CreateNHAssetOperation) FeeAmount() Asset    { return op.Fee }
func (op *CreateNHAssetOperation) DataSize() uint64    { return uint64(len(op.BaseDescribe)) }
func (*CreateNHAssetOperation) isOperation()           {}
func (op *CreateNHAssetOperation) Validate() error     { return validateFee(op.Fee) }

// DeleteNHAssetOperation destroys a non-homogeneous asset.
type DeleteNHAssetOperation struct {
	Fee              Asset     `cramberry:"1"`
	FeePayingAccount AccountID `cramberry:"2"`
	NHAsset          ObjectID  `cramberry:"3"`
}

func (*DeleteNHAssetOperation) Type() OperationType    { return OpDeleteNHAsset }
func (op *DeleteNHAssetOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *DeleteNHAssetOperation) FeeAmount() Asset    { return op.Fee }
func (*DeleteNHAssetOperation) isOperation()           {}
func (op *DeleteNHAssetOperation) Validate() error     { return validateFee(op.Fee) }

// TransferNHAssetOperation moves a non-homogeneous asset between accounts.
type TransferNHAssetOperation struct {
	Fee     Asset     `cramberry:"1"`
	From    AccountID `cramberry:"2"`
	To      AccountID `cramberry:"3"`
	NHAsset ObjectID  `cramberry:"4"`
}

func (*TransferNHAssetOperation) Type() OperationType    { return OpTransferNHAsset }
func (op *TransferNHAssetOperation) FeePayer() AccountID { return op.From }
func (op *TransferNHAssetOperation) FeeAmount() Asset    { return op.Fee }
func (*TransferNHAssetOperation) isOperation()           {}

func (op *TransferNHAssetOperation) ImpactedAccounts() []AccountID { return []AccountID{op.To} }

func (op *TransferNHAssetOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.From == op.To {
		return errors.New("cannot transfer to self")
	}
	return nil
}

// CreateNHAssetOrderOperation lists a non-homogeneous asset for sale.
type CreateNHAssetOrderOperation struct {
	Fee              Asset     `cramberry:"1"`
	Seller           AccountID `cramberry:"2"`
	OTCAccount       AccountID `cramberry:"3"`
	PendingOrdersFee Asset     `cramberry:"4"`
	NHAsset          ObjectID  `cramberry:"5"`
	Memo             string    `cramberry:"6"`
	Price            Asset     `cramberry:"7"`
	Expiration       TimePoint `cramberry:"8"`
}

func (*CreateNHAssetOrderOperation) Type() OperationType    { return OpCreateNHAssetOrder }
func (op *CreateNHAssetOrderOperation) FeePayer() AccountID { return op.Seller }
func (op *CreateNHAssetOrderOperation) FeeAmount() Asset    { return op.Fee }
func (op *CreateNHAssetOrderOperation) DataSize() uint64    { return uint64(len(op.Memo)) }
func (*CreateNHAssetOrderOperation) isOperation()           {}

func (op *CreateNHAssetOrderOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Price.Amount <= 0 {
		return errors.New("order price must be positive")
	}
	return nil
}

// CancelNHAssetOrderOperation withdraws a listing.
type CancelNHAssetOrderOperation struct {
	Fee              Asset     `cramberry:"1"`
	Order            ObjectID  `cramberry:"2"`
	FeePayingAccount AccountID `cramberry:"3"`
}

func (*CancelNHAssetOrderOperation) Type() OperationType    { return OpCancelNHAssetOrder }
func (op *CancelNHAssetOrderOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *CancelNHAssetOrderOperation) FeeAmount() Asset    { return op.Fee }
func (*CancelNHAssetOrderOperation) isOperation()           {}
func (op *CancelNHAssetOrderOperation) Validate() error     { return validateFee(op.Fee) }

// FillNHAssetOrderOperation buys a listed non-homogeneous asset.
type FillNHAssetOrderOperation struct {
	Fee              Asset     `cramberry:"1"`
	Order            ObjectID  `cramberry:"2"`
	FeePayingAccount AccountID `cramberry:"3"`
	Seller           AccountID `cramberry:"4"`
	NHAsset          ObjectID  `cramberry:"5"`
	Price            Asset     `cramberry:"6"`
}

func (*FillNHAssetOrderOperation) Type() OperationType    { return OpFillNHAssetOrder }
func (op *FillNHAssetOrderOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *FillNHAssetOrderOperation) FeeAmount() Asset    { return op.Fee }
func (*FillNHAssetOrderOperation) isOperation()           {}

func (op *FillNHAssetOrderOperation) ImpactedAccounts() []AccountID { return []AccountID{op.Seller} }
func (op *FillNHAssetOrderOperation) Validate() error               { return validateFee(op.Fee) }

// CreateFileOperation stores a file record on chain.
type CreateFileOperation struct {
	Fee         Asset     `cramberry:"1"`
	FileOwner   AccountID `cramberry:"2"`
	FileName    string    `cramberry:"3"`
	FileContent string    `cramberry:"4"`
}

func (*CreateFileOperation) Type() OperationType    { return OpCreateFile }
func (op *CreateFileOperation) FeePayer() AccountID { return op.FileOwner }
func (op *CreateFileOperation) FeeAmount() Asset    { return op.Fee }
func (op *CreateFileOperation) DataSize() uint64    { return uint64(len(op.FileName) + len(op.FileContent)) }
func (*CreateFileOperation) isOperation()           {}

func (op *CreateFileOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.FileName == "" {
		return errors.New("file name is empty")
	}
	return nil
}

// AddFileRelateAccountOperation grants accounts access to a file.
type AddFileRelateAccountOperation struct {
	Fee            Asset       `cramberry:"1"`
	FileOwner      AccountID   `cramberry:"2"`
	File           ObjectID    `cramberry:"3"`
	RelateAccounts []AccountID `cramberry:"4"`
}

func (*AddFileRelateAccountOperation) Type() OperationType    { return OpAddFileRelateAccount }
func (op *AddFileRelateAccountOperation) FeePayer() AccountID { return op.FileOwner }
func (op *AddFileRelateAccountOperation) FeeAmount() Asset    { return op.Fee }
func (*AddFileRelateAccountOperation) isOperation()           {}
func (op *AddFileRelateAccountOperation) Validate() error     { return validateFee(op.Fee) }

// FileSignatureOperation attaches a signature to a file.
type FileSignatureOperation struct {
	Fee              Asset     `cramberry:"1"`
	SignatureAccount AccountID `cramberry:"2"`
	File             ObjectID  `cramberry:"3"`
	Signature        string    `cramberry:"4"`
}

func (*FileSignatureOperation) Type() OperationType    { return OpFileSignature }
func (op *FileSignatureOperation) FeePayer() AccountID { return op.SignatureAccount }
func (op *FileSignatureOperation) FeeAmount() Asset    { return op.Fee }
func (op *FileSignatureOperation) DataSize() uint64    { return uint64(len(op.Signature)) }
func (*FileSignatureOperation) isOperation()           {}
func (op *FileSignatureOperation) Validate() error     { return validateFee(op.Fee) }

// RelateParentFileOperation links a file to its parent.
type RelateParentFileOperation struct {
	Fee             Asset     `cramberry:"1"`
	SubFileOwner    AccountID `cramberry:"2"`
	ParentFile      ObjectID  `cramberry:"3"`
	ParentFileOwner AccountID `cramberry:"4"`
	SubFile         ObjectID  `cramberry:"5"`
}

func (*RelateParentFileOperation) Type() OperationType    { return OpRelateParentFile }
func (op *RelateParentFileOperation) FeePayer() AccountID { return op.SubFileOwner }
func (op *RelateParentFileOperation) FeeAmount() Asset    { return op.Fee }
func (*RelateParentFileOperation) isOperation()           {}
func (op *RelateParentFileOperation) Validate() error     { return validateFee(op.Fee) }

// CrontabCreateOperation schedules a batch of operations to run
// ScheduledExecuteTimes times, every ExecuteInterval seconds, starting at
// StartTime.
type CrontabCreateOperation struct {
	Fee                   Asset               `cramberry:"1"`
	CrontabCreator        AccountID           `cramberry:"2"`
	CrontabOps            []OperationEnvelope `cramberry:"3"`
	StartTime             TimePoint           `cramberry:"4"`
	ExecuteInterval       uint64              `cramberry:"5"`
	ScheduledExecuteTimes uint64              `cramberry:"6"`
}

func (*CrontabCreateOperation) Type() OperationType    { return OpCrontabCreate }
func (op *CrontabCreateOperation) FeePayer() AccountID { return op.CrontabCreator }
func (op *CrontabCreateOperation) FeeAmount() Asset    { return op.Fee }
func (*CrontabCreateOperation) isOperation()           {}

func (op *CrontabCreateOperation) DataSize() uint64 {
	var n uint64
	for _, env := range op.CrontabOps {
		n += uint64(len(env.Data))
	}
	return n
}

func (op *CrontabCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if len(op.CrontabOps) == 0 {
		return errors.New("crontab must contain at least one operation")
	}
	if op.ExecuteInterval == 0 || op.ScheduledExecuteTimes == 0 {
		return errors.New("crontab interval and execute times must be positive")
	}
	for i, env := range op.CrontabOps {
		switch env.Type {
		case OpCrontabCreate, OpCrontabCancel, OpCrontabRecover, OpProposalCreate:
			return fmt.Errorf("crontab op %d: %v cannot be scheduled", i, env.Type)
		}
		inner, err := env.Decode()
		if err != nil {
			return fmt.Errorf("crontab op %d: %w", i, err)
		}
		if err := inner.Validate(); err != nil {
			return fmt.Errorf("crontab op %d: %w", i, err)
		}
	}
	return nil
}

// ImpactedAccounts returns every account touched by the scheduled ops.
func (op *CrontabCreateOperation) ImpactedAccounts() []AccountID {
	var out []AccountID
	for _, env := range op.CrontabOps {
		inner, err := env.Decode()
		if err != nil {
			continue
		}
		out = append(out, inner.FeePayer())
		if ia, ok := inner.(ImpactedAccounter); ok {
			out = append(out, ia.ImpactedAccounts()...)
		}
	}
	return out
}

// CrontabCancelOperation removes a crontab owned by the fee payer.
type CrontabCancelOperation struct {
	Fee            Asset     `cramberry:"1"`
	CrontabCreator AccountID `cramberry:"2"`
	Task           CrontabID `cramberry:"3"`
}

func (*CrontabCancelOperation) Type() OperationType    { return OpCrontabCancel }
func (op *CrontabCancelOperation) FeePayer() AccountID { return op.CrontabCreator }
func (op *CrontabCancelOperation) FeeAmount() Asset    { return op.Fee }
func (*CrontabCancelOperation) isOperation()           {}
func (op *CrontabCancelOperation) Validate() error     { return validateFee(op.Fee) }

// CrontabRecoverOperation resumes a suspended crontab at RestartTime.
type CrontabRecoverOperation struct {
	Fee          Asset     `cramberry:"1"`
	CrontabOwner AccountID `cramberry:"2"`
	Crontab      CrontabID `cramberry:"3"`
	RestartTime  TimePoint `cramberry:"4"`
}

func (*CrontabRecoverOperation) Type() OperationType    { return OpCrontabRecover }
func (op *CrontabRecoverOperation) FeePayer() AccountID { return op.CrontabOwner }
func (op *CrontabRecoverOperation) FeeAmount() Asset    { return op.Fee }
func (*CrontabRecoverOperation) isOperation()           {}
func (op *CrontabRecoverOperation) Validate() error     { return validateFee(op.Fee) }
