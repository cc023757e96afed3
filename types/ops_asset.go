package types

import (
	"errors"
	"fmt"
)

func init() {
	registerOperation(OpLimitOrderCreate, func() Operation { return new(LimitOrderCreateOperation) })
	registerOperation(OpLimitOrderCancel, func() Operation { return new(LimitOrderCancelOperation) })
	registerOperation(OpCallOrderUpdate, func() Operation { return new(CallOrderUpdateOperation) })
	registerOperation(OpAssetCreate, func() Operation { return new(AssetCreateOperation) })
	registerOperation(OpAssetUpdate, func() Operation { return new(AssetUpdateOperation) })
	registerOperation(OpAssetUpdateRestricted, func() Operation { return new(AssetUpdateRestrictedOperation) })
	registerOperation(OpAssetUpdateBitasset, func() Operation { return new(AssetUpdateBitassetOperation) })
	registerOperation(OpAssetUpdateFeedProducers, func() Operation { return new(AssetUpdateFeedProducersOperation) })
	registerOperation(OpAssetIssue, func() Operation { return new(AssetIssueOperation) })
	registerOperation(OpAssetReserve, func() Operation { return new(AssetReserveOperation) })
	registerOperation(OpAssetFundFeePool, func() Operation { return new(AssetFundFeePoolOperation) })
	registerOperation(OpAssetSettle, func() Operation { return new(AssetSettleOperation) })
	registerOperation(OpAssetGlobalSettle, func() Operation { return new(AssetGlobalSettleOperation) })
	registerOperation(OpAssetPublishFeed, func() Operation { return new(AssetPublishFeedOperation) })
	registerOperation(OpAssetClaimFees, func() Operation { return new(AssetClaimFeesOperation) })
	registerOperation(OpBidCollateral, func() Operation { return new(BidCollateralOperation) })
	registerOperation(OpTransferToBlind, func() Operation { return new(TransferToBlindOperation) })
	registerOperation(OpBlindTransfer, func() Operation { return new(BlindTransferOperation) })
	registerOperation(OpTransferFromBlind, func() Operation { return new(TransferFromBlindOperation) })
}

// Asset permission and flag bits.
const (
	ChargeMarketFee     uint16 = 0x01
	WhiteList           uint16 = 0x02
	OverrideAuthority   uint16 = 0x04
	TransferRestricted  uint16 = 0x08
	DisableForceSettle  uint16 = 0x10
	GlobalSettle        uint16 = 0x20
	DisableConfidential uint16 = 0x40
	WitnessFedAsset     uint16 = 0x80
	CommitteeFedAsset   uint16 = 0x100
)

// AssetOptions are the issuer-controlled settings of an asset.
type AssetOptions struct {
	MaxSupply         int64  `cramberry:"1"`
	MarketFeePercent  uint16 `cramberry:"2"`
	MaxMarketFee      int64  `cramberry:"3"`
	IssuerPermissions uint16 `cramberry:"4"`
	Flags             uint16 `cramberry:"5"`
	CoreExchangeRate  Price  `cramberry:"6"`
	Description       string `cramberry:"7"`
}

// Validate checks the option ranges.
func (o AssetOptions) Validate() error {
	if o.MaxSupply <= 0 || o.MaxSupply > MaxShareSupply {
		return fmt.Errorf("max supply %d out of range", o.MaxSupply)
	}
	if o.MarketFeePercent > uint16(Percent100) {
		return errors.New("market fee percent exceeds 100%")
	}
	if o.Flags&^o.IssuerPermissions != 0 {
		return errors.New("flags must be a subset of issuer permissions")
	}
	return o.CoreExchangeRate.Validate()
}

// BitassetOptions mark an asset as market issued.
type BitassetOptions struct {
	FeedLifetimeSec      uint32  `cramberry:"1"`
	MinimumFeeds         uint8   `cramberry:"2"`
	ForceSettlementDelay uint32  `cramberry:"3"`
	ShortBackingAsset    AssetID `cramberry:"4"`
}

// AssetCreateOperation registers a new asset.
type AssetCreateOperation struct {
	Fee             Asset            `cramberry:"1"`
	Issuer          AccountID        `cramberry:"2"`
	Symbol          string           `cramberry:"3"`
	Precision       uint8            `cramberry:"4"`
	CommonOptions   AssetOptions     `cramberry:"5"`
	BitassetOptions *BitassetOptions `cramberry:"6"`
}

func (*AssetCreateOperation) Type() OperationType    { return OpAssetCreate }
func (op *AssetCreateOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetCreateOperation) FeeAmount() Asset    { return op.Fee }
func (op *AssetCreateOperation) DataSize() uint64    { return uint64(len(op.CommonOptions.Description)) }
func (*AssetCreateOperation) isOperation()           {}

func (op *AssetCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if !IsValidSymbol(op.Symbol) {
		return fmt.Errorf("invalid asset symbol %q", op.Symbol)
	}
	if op.Precision > 12 {
		return errors.New("precision must be at most 12")
	}
	if op.CommonOptions.CoreExchangeRate.Base.AssetID != CoreAsset && op.CommonOptions.CoreExchangeRate.Quote.AssetID != CoreAsset {
		return errors.New("core exchange rate must be quoted against the core asset")
	}
	return op.CommonOptions.Validate()
}

// IsValidSymbol checks the symbol grammar: 3-16 uppercase letters,
// digits or single dots, starting with a letter.
func IsValidSymbol(symbol string) bool {
	if len(symbol) < 3 || len(symbol) > 16 {
		return false
	}
	if symbol[0] < 'A' || symbol[0] > 'Z' {
		return false
	}
	dot := false
	for _, c := range symbol[1:] {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return symbol[len(symbol)-1] != '.'
}

// AssetUpdateOperation changes the options of an asset.
type AssetUpdateOperation struct {
	Fee           Asset        `cramberry:"1"`
	Issuer        AccountID    `cramberry:"2"`
	AssetToUpdate AssetID      `cramberry:"3"`
	NewIssuer     *AccountID   `cramberry:"4"`
	NewOptions    AssetOptions `cramberry:"5"`
}

func (*AssetUpdateOperation) Type() OperationType    { return OpAssetUpdate }
func (op *AssetUpdateOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetUpdateOperation) isOperation()           {}

func (op *AssetUpdateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	return op.NewOptions.Validate()
}

// AssetUpdateRestrictedOperation edits the white and black lists of an asset.
type AssetUpdateRestrictedOperation struct {
	Fee           Asset       `cramberry:"1"`
	Payer         AccountID   `cramberry:"2"`
	TargetAsset   AssetID     `cramberry:"3"`
	IsAdd         bool        `cramberry:"4"`
	RestrictedIDs []AccountID `cramberry:"5"`
}

func (*AssetUpdateRestrictedOperation) Type() OperationType    { return OpAssetUpdateRestricted }
func (op *AssetUpdateRestrictedOperation) FeePayer() AccountID { return op.Payer }
func (op *AssetUpdateRestrictedOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetUpdateRestrictedOperation) isOperation()           {}
func (op *AssetUpdateRestrictedOperation) Validate() error     { return validateFee(op.Fee) }

// AssetUpdateBitassetOperation changes market-issued options.
type AssetUpdateBitassetOperation struct {
	Fee           Asset           `cramberry:"1"`
	Issuer        AccountID       `cramberry:"2"`
	AssetToUpdate AssetID         `cramberry:"3"`
	NewOptions    BitassetOptions `cramberry:"4"`
}

func (*AssetUpdateBitassetOperation) Type() OperationType    { return OpAssetUpdateBitasset }
func (op *AssetUpdateBitassetOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetUpdateBitassetOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetUpdateBitassetOperation) isOperation()           {}
func (op *AssetUpdateBitassetOperation) Validate() error     { return validateFee(op.Fee) }

// AssetUpdateFeedProducersOperation replaces the feed producer set.
type AssetUpdateFeedProducersOperation struct {
	Fee              Asset       `cramberry:"1"`
	Issuer           AccountID   `cramberry:"2"`
	AssetToUpdate    AssetID     `cramberry:"3"`
	NewFeedProducers []AccountID `cramberry:"4"`
}

func (*AssetUpdateFeedProducersOperation) Type() OperationType    { return OpAssetUpdateFeedProducers }
func (op *AssetUpdateFeedProducersOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetUpdateFeedProducersOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetUpdateFeedProducersOperation) isOperation()           {}
func (op *AssetUpdateFeedProducersOperation) Validate() error     { return validateFee(op.Fee) }

// AssetIssueOperation mints new supply to an account.
type AssetIssueOperation struct {
	Fee            Asset     `cramberry:"1"`
	Issuer         AccountID `cramberry:"2"`
	AssetToIssue   Asset     `cramberry:"3"`
	IssueToAccount AccountID `cramberry:"4"`
	Memo           []byte    `cramberry:"5"`
}

func (*AssetIssueOperation) Type() OperationType    { return OpAssetIssue }
func (op *AssetIssueOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetIssueOperation) FeeAmount() Asset    { return op.Fee }
func (op *AssetIssueOperation) DataSize() uint64    { return uint64(len(op.Memo)) }
func (*AssetIssueOperation) isOperation()           {}
func (op *AssetIssueOperation) ImpactedAccounts() []AccountID {
	return []AccountID{op.IssueToAccount}
}

func (op *AssetIssueOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.AssetToIssue.Amount <= 0 || op.AssetToIssue.Amount > MaxShareSupply {
		return errors.New("issue amount out of range")
	}
	if op.AssetToIssue.AssetID == CoreAsset {
		return errors.New("the core asset cannot be issued")
	}
	return nil
}

// AssetReserveOperation burns supply held by the payer.
type AssetReserveOperation struct {
	Fee             Asset     `cramberry:"1"`
	Payer           AccountID `cramberry:"2"`
	AmountToReserve Asset     `cramberry:"3"`
}

func (*AssetReserveOperation) Type() OperationType    { return OpAssetReserve }
func (op *AssetReserveOperation) FeePayer() AccountID { return op.Payer }
func (op *AssetReserveOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetReserveOperation) isOperation()           {}

func (op *AssetReserveOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.AmountToReserve.Amount <= 0 || op.AmountToReserve.Amount > MaxShareSupply {
		return errors.New("reserve amount out of range")
	}
	return nil
}

// AssetFundFeePoolOperation moves core from an account into an asset's
// fee pool.
type AssetFundFeePoolOperation struct {
	Fee         Asset     `cramberry:"1"`
	FromAccount AccountID `cramberry:"2"`
	AssetID     AssetID   `cramberry:"3"`
	// Amount of core asset.
	Amount int64 `cramberry:"4"`
}

func (*AssetFundFeePoolOperation) Type() OperationType    { return OpAssetFundFeePool }
func (op *AssetFundFeePoolOperation) FeePayer() AccountID { return op.FromAccount }
func (op *AssetFundFeePoolOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetFundFeePoolOperation) isOperation()           {}

func (op *AssetFundFeePoolOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Fee.AssetID != CoreAsset {
		return errors.New("fee pool funding must pay its fee in core")
	}
	if op.Amount <= 0 || op.Amount > MaxShareSupply {
		return errors.New("fund amount out of range")
	}
	return nil
}

// AssetSettleOperation requests settlement of a market-issued asset.
type AssetSettleOperation struct {
	Fee     Asset     `cramberry:"1"`
	Account AccountID `cramberry:"2"`
	Amount  Asset     `cramberry:"3"`
}

func (*AssetSettleOperation) Type() OperationType    { return OpAssetSettle }
func (op *AssetSettleOperation) FeePayer() AccountID { return op.Account }
func (op *AssetSettleOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetSettleOperation) isOperation()           {}

func (op *AssetSettleOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Amount.Amount <= 0 {
		return errors.New("settle amount must be positive")
	}
	return nil
}

// AssetGlobalSettleOperation settles every position of a market-issued asset.
type AssetGlobalSettleOperation struct {
	Fee           Asset     `cramberry:"1"`
	Issuer        AccountID `cramberry:"2"`
	AssetToSettle AssetID   `cramberry:"3"`
	SettlePrice   Price     `cramberry:"4"`
}

func (*AssetGlobalSettleOperation) Type() OperationType    { return OpAssetGlobalSettle }
func (op *AssetGlobalSettleOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetGlobalSettleOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetGlobalSettleOperation) isOperation()           {}
func (op *AssetGlobalSettleOperation) Validate() error     { return validateFee(op.Fee) }

// AssetPublishFeedOperation publishes a price feed.
type AssetPublishFeedOperation struct {
	Fee         Asset     `cramberry:"1"`
	Publisher   AccountID `cramberry:"2"`
	AssetID     AssetID   `cramberry:"3"`
	SettlePrice Price     `cramberry:"4"`
}

func (*AssetPublishFeedOperation) Type() OperationType    { return OpAssetPublishFeed }
func (op *AssetPublishFeedOperation) FeePayer() AccountID { return op.Publisher }
func (op *AssetPublishFeedOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetPublishFeedOperation) isOperation()           {}
func (op *AssetPublishFeedOperation) Validate() error     { return validateFee(op.Fee) }

// AssetClaimFeesOperation lets the issuer withdraw accumulated fees.
type AssetClaimFeesOperation struct {
	Fee           Asset     `cramberry:"1"`
	Issuer        AccountID `cramberry:"2"`
	AmountToClaim Asset     `cramberry:"3"`
}

func (*AssetClaimFeesOperation) Type() OperationType    { return OpAssetClaimFees }
func (op *AssetClaimFeesOperation) FeePayer() AccountID { return op.Issuer }
func (op *AssetClaimFeesOperation) FeeAmount() Asset    { return op.Fee }
func (*AssetClaimFeesOperation) isOperation()           {}

func (op *AssetClaimFeesOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.AmountToClaim.Amount <= 0 {
		return errors.New("claim amount must be positive")
	}
	return nil
}

// LimitOrderCreateOperation places an order on the market book.
type LimitOrderCreateOperation struct {
	Fee          Asset     `cramberry:"1"`
	Seller       AccountID `cramberry:"2"`
	AmountToSell Asset     `cramberry:"3"`
	MinToReceive Asset     `cramberry:"4"`
	Expiration   TimePoint `cramberry:"5"`
	FillOrKill   bool      `cramberry:"6"`
}

func (*LimitOrderCreateOperation) Type() OperationType    { return OpLimitOrderCreate }
func (op *LimitOrderCreateOperation) FeePayer() AccountID { return op.Seller }
func (op *LimitOrderCreateOperation) FeeAmount() Asset    { return op.Fee }
func (*LimitOrderCreateOperation) isOperation()           {}

func (op *LimitOrderCreateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.AmountToSell.AssetID == op.MinToReceive.AssetID {
		return errors.New("cannot trade an asset for itself")
	}
	if op.AmountToSell.Amount <= 0 || op.MinToReceive.Amount <= 0 {
		return errors.New("order amounts must be positive")
	}
	return nil
}

// LimitOrderCancelOperation removes an order from the book.
type LimitOrderCancelOperation struct {
	Fee              Asset     `cramberry:"1"`
	FeePayingAccount AccountID `cramberry:"2"`
	Order            ObjectID  `cramberry:"3"`
}

func (*LimitOrderCancelOperation) Type() OperationType    { return OpLimitOrderCancel }
func (op *LimitOrderCancelOperation) FeePayer() AccountID { return op.FeePayingAccount }
func (op *LimitOrderCancelOperation) FeeAmount() Asset    { return op.Fee }
func (*LimitOrderCancelOperation) isOperation()           {}
func (op *LimitOrderCancelOperation) Validate() error     { return validateFee(op.Fee) }

// CallOrderUpdateOperation adjusts a collateralized debt position.
type CallOrderUpdateOperation struct {
	Fee             Asset     `cramberry:"1"`
	FundingAccount  AccountID `cramberry:"2"`
	DeltaCollateral Asset     `cramberry:"3"`
	DeltaDebt       Asset     `cramberry:"4"`
}

func (*CallOrderUpdateOperation) Type() OperationType    { return OpCallOrderUpdate }
func (op *CallOrderUpdateOperation) FeePayer() AccountID { return op.FundingAccount }
func (op *CallOrderUpdateOperation) FeeAmount() Asset    { return op.Fee }
func (*CallOrderUpdateOperation) isOperation()           {}

func (op *CallOrderUpdateOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.DeltaCollateral.Amount == 0 && op.DeltaDebt.Amount == 0 {
		return errors.New("call order update changes nothing")
	}
	return nil
}

// BidCollateralOperation bids collateral for a globally settled asset.
type BidCollateralOperation struct {
	Fee                  Asset     `cramberry:"1"`
	Bidder               AccountID `cramberry:"2"`
	AdditionalCollateral Asset     `cramberry:"3"`
	DebtCovered          Asset     `cramberry:"4"`
}

func (*BidCollateralOperation) Type() OperationType    { return OpBidCollateral }
func (op *BidCollateralOperation) FeePayer() AccountID { return op.Bidder }
func (op *BidCollateralOperation) FeeAmount() Asset    { return op.Fee }
func (*BidCollateralOperation) isOperation()           {}
func (op *BidCollateralOperation) Validate() error     { return validateFee(op.Fee) }

// BlindOutput is one confidential output commitment.
type BlindOutput struct {
	Commitment []byte    `cramberry:"1"`
	Owner      Authority `cramberry:"2"`
}

// TransferToBlindOperation moves public funds into confidential outputs.
type TransferToBlindOperation struct {
	Fee     Asset         `cramberry:"1"`
	Amount  Asset         `cramberry:"2"`
	From    AccountID     `cramberry:"3"`
	Outputs []BlindOutput `cramberry:"4"`
}

func (*TransferToBlindOperation) Type() OperationType    { return OpTransferToBlind }
func (op *TransferToBlindOperation) FeePayer() AccountID { return op.From }
func (op *TransferToBlindOperation) FeeAmount() Asset    { return op.Fee }
func (*TransferToBlindOperation) isOperation()           {}

func (op *TransferToBlindOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Amount.Amount <= 0 || len(op.Outputs) == 0 {
		return errors.New("transfer to blind needs outputs and a positive amount")
	}
	return nil
}

// BlindTransferOperation moves funds between confidential outputs.
type BlindTransferOperation struct {
	Fee     Asset         `cramberry:"1"`
	Inputs  [][]byte      `cramberry:"2"`
	Outputs []BlindOutput `cramberry:"3"`
}

func (*BlindTransferOperation) Type() OperationType { return OpBlindTransfer }
func (*BlindTransferOperation) FeePayer() AccountID { return TempAccount }
func (op *BlindTransferOperation) FeeAmount() Asset { return op.Fee }
func (*BlindTransferOperation) isOperation()        {}

func (op *BlindTransferOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if len(op.Inputs) == 0 || len(op.Outputs) == 0 {
		return errors.New("blind transfer needs inputs and outputs")
	}
	return nil
}

// TransferFromBlindOperation moves confidential funds to a public account.
type TransferFromBlindOperation struct {
	Fee    Asset     `cramberry:"1"`
	Amount Asset     `cramberry:"2"`
	To     AccountID `cramberry:"3"`
	Inputs [][]byte  `cramberry:"4"`
}

func (*TransferFromBlindOperation) Type() OperationType { return OpTransferFromBlind }
func (*TransferFromBlindOperation) FeePayer() AccountID { return TempAccount }
func (op *TransferFromBlindOperation) FeeAmount() Asset { return op.Fee }
func (*TransferFromBlindOperation) isOperation()        {}

func (op *TransferFromBlindOperation) Validate() error {
	if err := validateFee(op.Fee); err != nil {
		return err
	}
	if op.Amount.Amount <= 0 || len(op.Inputs) == 0 {
		return errors.New("transfer from blind needs inputs and a positive amount")
	}
	return nil
}
