package types

import "fmt"

// Object is a record held by the object store.
type Object interface {
	GetID() ObjectID
	SetID(ObjectID)
	Kind() ObjectKind
}

var objectFactories = map[ObjectKind]func() Object{}

func registerObject(k ObjectKind, f func() Object) {
	if _, ok := objectFactories[k]; ok {
		panic(fmt.Sprintf("object kind %v registered twice", k))
	}
	objectFactories[k] = f
}

// NewObject returns a zero object of kind k.
func NewObject(k ObjectKind) (Object, bool) {
	f, ok := objectFactories[k]
	if !ok {
		return nil, false
	}
	return f(), true
}

func init() {
	registerObject(AccountKind, func() Object { return new(AccountObject) })
	registerObject(AccountStatisticsKind, func() Object { return new(AccountStatisticsObject) })
	registerObject(AccountBalanceKind, func() Object { return new(AccountBalanceObject) })
	registerObject(AssetKind, func() Object { return new(AssetObject) })
	registerObject(AssetDynamicDataKind, func() Object { return new(AssetDynamicDataObject) })
	registerObject(VestingBalanceKind, func() Object { return new(VestingBalanceObject) })
	registerObject(ProposalKind, func() Object { return new(ProposalObject) })
	registerObject(CrontabKind, func() Object { return new(CrontabObject) })
	registerObject(ContractKind, func() Object { return new(ContractObject) })
	registerObject(WitnessKind, func() Object { return new(WitnessObject) })
	registerObject(GlobalPropertyKind, func() Object { return new(GlobalPropertyObject) })
	registerObject(DynamicGlobalPropertyKind, func() Object { return new(DynamicGlobalPropertyObject) })
	registerObject(TransactionKind, func() Object { return new(TransactionObject) })
	registerObject(BlockSummaryKind, func() Object { return new(BlockSummaryObject) })
	registerObject(FBAAccumulatorKind, func() Object { return new(FBAAccumulatorObject) })
	registerObject(BlindedBalanceKind, func() Object { return new(BlindedBalanceObject) })
}

// AccountObject is a registered account.
type AccountObject struct {
	ID                            ObjectID             `cramberry:"1"`
	MembershipExpiration          TimePoint            `cramberry:"2"`
	Registrar                     AccountID            `cramberry:"3"`
	Referrer                      AccountID            `cramberry:"4"`
	LifetimeReferrer              AccountID            `cramberry:"5"`
	NetworkFeePercentage          uint16               `cramberry:"6"`
	LifetimeReferrerFeePercentage uint16               `cramberry:"7"`
	ReferrerRewardsPercentage     uint16               `cramberry:"8"`
	Name                          string               `cramberry:"9"`
	Owner                         Authority            `cramberry:"10"`
	Active                        Authority            `cramberry:"11"`
	Options                       AccountOptions       `cramberry:"12"`
	Statistics                    AccountStatisticsID  `cramberry:"13"`
	WhitelistingAccounts          []AccountID          `cramberry:"14"`
	BlacklistingAccounts          []AccountID          `cramberry:"15"`
	OwnerSpecialAuthority         *TopHoldersAuthority `cramberry:"16"`
	ActiveSpecialAuthority        *TopHoldersAuthority `cramberry:"17"`
	TopNControlFlags              uint8                `cramberry:"18"`
	CashbackVB                    *VestingBalanceID    `cramberry:"19"`
	// AllowedAssets, when non-nil, restricts which assets the account may hold.
	AllowedAssets []AssetID `cramberry:"20"`
	// Locked is the asset lock table. Entries never exceed the balance.
	Locked []LockedAsset `cramberry:"21"`
}

func (o *AccountObject) GetID() ObjectID   { return o.ID }
func (o *AccountObject) SetID(id ObjectID) { o.ID = id }
func (*AccountObject) Kind() ObjectKind    { return AccountKind }

// AccountID returns the typed id.
func (o *AccountObject) AccountID() AccountID { return AccountID(o.ID.Instance) }

func (o *AccountObject) ImpactedAccounts() []AccountID { return []AccountID{o.AccountID()} }

// IsLifetimeMember reports whether the account holds a lifetime membership.
func (o *AccountObject) IsLifetimeMember() bool { return o.MembershipExpiration == MaxTimePoint }

// LockedAmount returns the locked total of asset a.
func (o *AccountObject) LockedAmount(a AssetID) int64 {
	for _, l := range o.Locked {
		if l.AssetID == a {
			return l.Amount
		}
	}
	return 0
}

// SetLocked sets the locked total of asset a, dropping zero entries.
func (o *AccountObject) SetLocked(a AssetID, amount int64) {
	for i, l := range o.Locked {
		if l.AssetID != a {
			continue
		}
		if amount == 0 {
			o.Locked = append(o.Locked[:i], o.Locked[i+1:]...)
		} else {
			o.Locked[i].Amount = amount
		}
		return
	}
	if amount != 0 {
		o.Locked = append(o.Locked, LockedAsset{AssetID: a, Amount: amount})
	}
}

// AccountStatisticsObject tracks per-account counters and fee accrual.
type AccountStatisticsObject struct {
	ID                ObjectID  `cramberry:"1"`
	Owner             AccountID `cramberry:"2"`
	TotalOps          uint64    `cramberry:"3"`
	TotalCoreInOrders int64     `cramberry:"4"`
	LifetimeFeesPaid  int64     `cramberry:"5"`
	// Fees waiting for the next maintenance. Amounts over the cashback
	// threshold go to PendingFees and are vested; the rest is paid out
	// immediately vested.
	PendingFees       int64 `cramberry:"6"`
	PendingVestedFees int64 `cramberry:"7"`
}

func (o *AccountStatisticsObject) GetID() ObjectID               { return o.ID }
func (o *AccountStatisticsObject) SetID(id ObjectID)             { o.ID = id }
func (*AccountStatisticsObject) Kind() ObjectKind                { return AccountStatisticsKind }
func (o *AccountStatisticsObject) ImpactedAccounts() []AccountID { return []AccountID{o.Owner} }

// PayFee accrues a core fee.
func (o *AccountStatisticsObject) PayFee(coreFee, cashbackVestingThreshold int64) {
	if coreFee > cashbackVestingThreshold {
		o.PendingFees += coreFee
	} else {
		o.PendingVestedFees += coreFee
	}
}

// AccountBalanceObject is one (owner, asset) balance row.
type AccountBalanceObject struct {
	ID        ObjectID  `cramberry:"1"`
	Owner     AccountID `cramberry:"2"`
	AssetType AssetID   `cramberry:"3"`
	Balance   int64     `cramberry:"4"`
}

func (o *AccountBalanceObject) GetID() ObjectID               { return o.ID }
func (o *AccountBalanceObject) SetID(id ObjectID)             { o.ID = id }
func (*AccountBalanceObject) Kind() ObjectKind                { return AccountBalanceKind }
func (o *AccountBalanceObject) ImpactedAccounts() []AccountID { return []AccountID{o.Owner} }

// Amount returns the balance as an Asset.
func (o *AccountBalanceObject) Amount() Asset { return NewAsset(o.Balance, o.AssetType) }

// AssetObject is a registered asset.
type AssetObject struct {
	ID                 ObjectID           `cramberry:"1"`
	Symbol             string             `cramberry:"2"`
	Precision          uint8              `cramberry:"3"`
	Issuer             AccountID          `cramberry:"4"`
	Options            AssetOptions       `cramberry:"5"`
	DynamicAssetDataID AssetDynamicDataID `cramberry:"6"`
	Bitasset           *BitassetOptions   `cramberry:"7"`
	BuybackAccount     *AccountID         `cramberry:"8"`
	WhitelistAccounts  []AccountID        `cramberry:"9"`
	BlacklistAccounts  []AccountID        `cramberry:"10"`
}

func (o *AssetObject) GetID() ObjectID               { return o.ID }
func (o *AssetObject) SetID(id ObjectID)             { o.ID = id }
func (*AssetObject) Kind() ObjectKind                { return AssetKind }
func (o *AssetObject) ImpactedAccounts() []AccountID { return []AccountID{o.Issuer} }

// AssetID returns the typed id.
func (o *AssetObject) AssetID() AssetID { return AssetID(o.ID.Instance) }

// IsMarketIssued reports whether the asset is collateral backed.
func (o *AssetObject) IsMarketIssued() bool { return o.Bitasset != nil }

// Amount builds an Asset of this type.
func (o *AssetObject) Amount(n int64) Asset { return NewAsset(n, o.AssetID()) }

// IsAuthorized reports whether acct may hold or pay with the asset under
// its white and black lists.
func (o *AssetObject) IsAuthorized(acct AccountID) bool {
	if o.Options.Flags&WhiteList == 0 {
		return true
	}
	for _, a := range o.BlacklistAccounts {
		if a == acct {
			return false
		}
	}
	if len(o.WhitelistAccounts) == 0 {
		return true
	}
	for _, a := range o.WhitelistAccounts {
		if a == acct {
			return true
		}
	}
	return false
}

// AssetDynamicDataObject holds the frequently changing supply counters of
// an asset.
type AssetDynamicDataObject struct {
	ID                 ObjectID `cramberry:"1"`
	CurrentSupply      int64    `cramberry:"2"`
	ConfidentialSupply int64    `cramberry:"3"`
	AccumulatedFees    int64    `cramberry:"4"`
	FeePool            int64    `cramberry:"5"`
}

func (o *AssetDynamicDataObject) GetID() ObjectID   { return o.ID }
func (o *AssetDynamicDataObject) SetID(id ObjectID) { o.ID = id }
func (*AssetDynamicDataObject) Kind() ObjectKind    { return AssetDynamicDataKind }

// LinearVestingPolicy releases BeginBalance linearly after a cliff.
type LinearVestingPolicy struct {
	BeginTimestamp         TimePoint `cramberry:"1"`
	VestingCliffSeconds    uint32    `cramberry:"2"`
	VestingDurationSeconds uint32    `cramberry:"3"`
	BeginBalance           int64     `cramberry:"4"`
}

// CDDVestingPolicy releases funds by coin-seconds earned.
type CDDVestingPolicy struct {
	VestingSeconds              uint32    `cramberry:"1"`
	CoinSecondsEarned           Uint128   `cramberry:"2"`
	CoinSecondsEarnedLastUpdate TimePoint `cramberry:"3"`
	StartClaim                  TimePoint `cramberry:"4"`
}

// VestingPolicy holds exactly one policy variant.
type VestingPolicy struct {
	Linear *LinearVestingPolicy `cramberry:"1"`
	CDD    *CDDVestingPolicy    `cramberry:"2"`
}

// VestingBalanceType tags why a vesting balance exists.
type VestingBalanceType uint8

const (
	VestingUnspecified VestingBalanceType = iota
	VestingCashback
	VestingWitness
)

// VestingBalanceObject is an amount released over time by its policy.
type VestingBalanceObject struct {
	ID          ObjectID           `cramberry:"1"`
	Owner       AccountID          `cramberry:"2"`
	Balance     Asset              `cramberry:"3"`
	Policy      VestingPolicy      `cramberry:"4"`
	BalanceType VestingBalanceType `cramberry:"5"`
}

func (o *VestingBalanceObject) GetID() ObjectID               { return o.ID }
func (o *VestingBalanceObject) SetID(id ObjectID)             { o.ID = id }
func (*VestingBalanceObject) Kind() ObjectKind                { return VestingBalanceKind }
func (o *VestingBalanceObject) ImpactedAccounts() []AccountID { return []AccountID{o.Owner} }

// VestingBalanceID returns the typed id.
func (o *VestingBalanceObject) VestingBalanceID() VestingBalanceID {
	return VestingBalanceID(o.ID.Instance)
}

// ProposalObject is a pending batch of operations awaiting approvals.
type ProposalObject struct {
	ID                       ObjectID    `cramberry:"1"`
	Proposer                 AccountID   `cramberry:"2"`
	ExpirationTime           TimePoint   `cramberry:"3"`
	ReviewPeriodTime         *TimePoint  `cramberry:"4"`
	ProposedTransaction      Transaction `cramberry:"5"`
	RequiredActiveApprovals  []AccountID `cramberry:"6"`
	AvailableActiveApprovals []AccountID `cramberry:"7"`
	RequiredOwnerApprovals   []AccountID `cramberry:"8"`
	AvailableOwnerApprovals  []AccountID `cramberry:"9"`
	AvailableKeyApprovals    []PublicKey `cramberry:"10"`
	// AllowExecution is set once the approvals satisfy the required
	// authorities and the review period, if any, has begun.
	AllowExecution bool `cramberry:"11"`
}

func (o *ProposalObject) GetID() ObjectID   { return o.ID }
func (o *ProposalObject) SetID(id ObjectID) { o.ID = id }
func (*ProposalObject) Kind() ObjectKind    { return ProposalKind }

// ProposalID returns the typed id.
func (o *ProposalObject) ProposalID() ProposalID { return ProposalID(o.ID.Instance) }

func (o *ProposalObject) ImpactedAccounts() []AccountID {
	out := []AccountID{o.Proposer}
	out = append(out, o.RequiredActiveApprovals...)
	return append(out, o.RequiredOwnerApprovals...)
}

// CrontabObject is a recurring scheduled transaction.
type CrontabObject struct {
	ID                     ObjectID    `cramberry:"1"`
	TaskOwner              AccountID   `cramberry:"2"`
	TimedTransaction       Transaction `cramberry:"3"`
	StartTime              TimePoint   `cramberry:"4"`
	NextExecuteTime        TimePoint   `cramberry:"5"`
	ExecuteInterval        uint64      `cramberry:"6"`
	ScheduledExecuteTimes  uint64      `cramberry:"7"`
	AlreadyExecuteTimes    uint64      `cramberry:"8"`
	ContinuousFailureTimes uint64      `cramberry:"9"`
	IsSuspended            bool        `cramberry:"10"`
	// ExpirationTime is the time of the last scheduled execution, or for
	// suspended entries the time after which the entry is swept.
	ExpirationTime TimePoint `cramberry:"11"`
}

func (o *CrontabObject) GetID() ObjectID               { return o.ID }
func (o *CrontabObject) SetID(id ObjectID)             { o.ID = id }
func (*CrontabObject) Kind() ObjectKind                { return CrontabKind }
func (o *CrontabObject) ImpactedAccounts() []AccountID { return []AccountID{o.TaskOwner} }

// CrontabID returns the typed id.
func (o *CrontabObject) CrontabID() CrontabID { return CrontabID(o.ID.Instance) }

// Remaining returns the number of executions still scheduled.
func (o *CrontabObject) Remaining() uint64 {
	if o.AlreadyExecuteTimes >= o.ScheduledExecuteTimes {
		return 0
	}
	return o.ScheduledExecuteTimes - o.AlreadyExecuteTimes
}

// ContractObject is deployed script code with its persistent data.
type ContractObject struct {
	ID                ObjectID  `cramberry:"1"`
	Owner             AccountID `cramberry:"2"`
	Name              string    `cramberry:"3"`
	Code              []byte    `cramberry:"4"`
	ContractAuthority PublicKey `cramberry:"5"`
	CurrentVersion    Hash      `cramberry:"6"`
	CreationDate      TimePoint `cramberry:"7"`
	// UserInvokeSharePercent is the share of the call surcharge paid by
	// the caller, in whole percent. The owner pays the rest.
	UserInvokeSharePercent uint16 `cramberry:"8"`
	Data                   []byte `cramberry:"9"`
}

func (o *ContractObject) GetID() ObjectID               { return o.ID }
func (o *ContractObject) SetID(id ObjectID)             { o.ID = id }
func (*ContractObject) Kind() ObjectKind                { return ContractKind }
func (o *ContractObject) ImpactedAccounts() []AccountID { return []AccountID{o.Owner} }

// ContractID returns the typed id.
func (o *ContractObject) ContractID() ContractID { return ContractID(o.ID.Instance) }

// WitnessObject is a registered block producer.
type WitnessObject struct {
	ID                    ObjectID          `cramberry:"1"`
	WitnessAccount        AccountID         `cramberry:"2"`
	LastAslot             uint64            `cramberry:"3"`
	SigningKey            PublicKey         `cramberry:"4"`
	PayVB                 *VestingBalanceID `cramberry:"5"`
	TotalMissed           int64             `cramberry:"6"`
	LastConfirmedBlockNum uint32            `cramberry:"7"`
	URL                   string            `cramberry:"8"`
}

func (o *WitnessObject) GetID() ObjectID               { return o.ID }
func (o *WitnessObject) SetID(id ObjectID)             { o.ID = id }
func (*WitnessObject) Kind() ObjectKind                { return WitnessKind }
func (o *WitnessObject) ImpactedAccounts() []AccountID { return []AccountID{o.WitnessAccount} }

// WitnessID returns the typed id.
func (o *WitnessObject) WitnessID() WitnessID { return WitnessID(o.ID.Instance) }

// GlobalPropertyObject holds the governed chain parameters.
type GlobalPropertyObject struct {
	ID                     ObjectID         `cramberry:"1"`
	Parameters             ChainParameters  `cramberry:"2"`
	PendingParameters      *ChainParameters `cramberry:"3"`
	ActiveWitnesses        []WitnessID      `cramberry:"4"`
	ActiveCommitteeMembers []AccountID      `cramberry:"5"`
}

func (o *GlobalPropertyObject) GetID() ObjectID   { return o.ID }
func (o *GlobalPropertyObject) SetID(id ObjectID) { o.ID = id }
func (*GlobalPropertyObject) Kind() ObjectKind    { return GlobalPropertyKind }

// DynamicGlobalPropertyObject holds head state updated every block.
type DynamicGlobalPropertyObject struct {
	ID                       ObjectID  `cramberry:"1"`
	HeadBlockNumber          uint32    `cramberry:"2"`
	HeadBlockID              BlockID   `cramberry:"3"`
	Time                     TimePoint `cramberry:"4"`
	CurrentWitness           WitnessID `cramberry:"5"`
	NextMaintenanceTime      TimePoint `cramberry:"6"`
	LastBudgetTime           TimePoint `cramberry:"7"`
	WitnessBudget            int64     `cramberry:"8"`
	RecentlyMissedCount      uint32    `cramberry:"9"`
	CurrentAslot             uint64    `cramberry:"10"`
	RecentSlotsFilled        Uint128   `cramberry:"11"`
	LastIrreversibleBlockNum uint32    `cramberry:"12"`
	// CurrentOpIndex is the index of the operation being applied within
	// the current block.
	CurrentOpIndex uint32 `cramberry:"13"`
}

func (o *DynamicGlobalPropertyObject) GetID() ObjectID   { return o.ID }
func (o *DynamicGlobalPropertyObject) SetID(id ObjectID) { o.ID = id }
func (*DynamicGlobalPropertyObject) Kind() ObjectKind    { return DynamicGlobalPropertyKind }

// TransactionObject remembers an applied transaction id until it expires,
// rejecting duplicates.
type TransactionObject struct {
	ID         ObjectID      `cramberry:"1"`
	TrxID      TransactionID `cramberry:"2"`
	Expiration TimePoint     `cramberry:"3"`
}

func (o *TransactionObject) GetID() ObjectID   { return o.ID }
func (o *TransactionObject) SetID(id ObjectID) { o.ID = id }
func (*TransactionObject) Kind() ObjectKind    { return TransactionKind }

// BlockSummaryObject maps the low 16 bits of a block number to its id for
// reference-block checks.
type BlockSummaryObject struct {
	ID      ObjectID `cramberry:"1"`
	BlockID BlockID  `cramberry:"2"`
}

func (o *BlockSummaryObject) GetID() ObjectID   { return o.ID }
func (o *BlockSummaryObject) SetID(id ObjectID) { o.ID = id }
func (*BlockSummaryObject) Kind() ObjectKind    { return BlockSummaryKind }

// FBAAccumulatorObject collects fees of a fee-backed feature.
type FBAAccumulatorObject struct {
	ID                 ObjectID `cramberry:"1"`
	AccumulatedFBAFees int64    `cramberry:"2"`
	DesignatedAsset    *AssetID `cramberry:"3"`
}

func (o *FBAAccumulatorObject) GetID() ObjectID   { return o.ID }
func (o *FBAAccumulatorObject) SetID(id ObjectID) { o.ID = id }
func (*FBAAccumulatorObject) Kind() ObjectKind    { return FBAAccumulatorKind }

// BlindedBalanceObject is an unspent confidential output. Its amount is
// hidden in the commitment; only the asset is public.
type BlindedBalanceObject struct {
	ID         ObjectID  `cramberry:"1"`
	Commitment []byte    `cramberry:"2"`
	AssetID    AssetID   `cramberry:"3"`
	Owner      Authority `cramberry:"4"`
}

func (o *BlindedBalanceObject) GetID() ObjectID   { return o.ID }
func (o *BlindedBalanceObject) SetID(id ObjectID) { o.ID = id }
func (*BlindedBalanceObject) Kind() ObjectKind    { return BlindedBalanceKind }
