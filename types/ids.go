package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Object spaces.
const (
	ProtocolSpace       uint8 = 1
	ImplementationSpace uint8 = 2
)

// ObjectKind is the (space, type) pair every object id carries.
type ObjectKind struct {
	Space uint8 `cramberry:"1"`
	Type  uint8 `cramberry:"2"`
}

func (k ObjectKind) String() string { return fmt.Sprintf("%d.%d", k.Space, k.Type) }

// Protocol-space object kinds.
var (
	AccountKind        = ObjectKind{ProtocolSpace, 2}
	AssetKind          = ObjectKind{ProtocolSpace, 3}
	WitnessKind        = ObjectKind{ProtocolSpace, 6}
	ProposalKind       = ObjectKind{ProtocolSpace, 10}
	VestingBalanceKind = ObjectKind{ProtocolSpace, 13}
	BalanceKind        = ObjectKind{ProtocolSpace, 15}
	ContractKind       = ObjectKind{ProtocolSpace, 16}
	CrontabKind        = ObjectKind{ProtocolSpace, 22}
)

// Implementation-space object kinds.
var (
	GlobalPropertyKind        = ObjectKind{ImplementationSpace, 0}
	DynamicGlobalPropertyKind = ObjectKind{ImplementationSpace, 1}
	AssetDynamicDataKind      = ObjectKind{ImplementationSpace, 3}
	AccountBalanceKind        = ObjectKind{ImplementationSpace, 5}
	AccountStatisticsKind     = ObjectKind{ImplementationSpace, 6}
	TransactionKind           = ObjectKind{ImplementationSpace, 7}
	BlockSummaryKind          = ObjectKind{ImplementationSpace, 8}
	BlindedBalanceKind        = ObjectKind{ImplementationSpace, 12}
	FBAAccumulatorKind        = ObjectKind{ImplementationSpace, 17}
)

// ObjectID addresses one object in the store.
type ObjectID struct {
	Space    uint8  `cramberry:"1"`
	Type     uint8  `cramberry:"2"`
	Instance uint64 `cramberry:"3"`
}

// NewObjectID builds an id of the given kind.
func NewObjectID(k ObjectKind, instance uint64) ObjectID {
	return ObjectID{Space: k.Space, Type: k.Type, Instance: instance}
}

// Kind returns the (space, type) of the id.
func (id ObjectID) Kind() ObjectKind { return ObjectKind{id.Space, id.Type} }

func (id ObjectID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Space, id.Type, id.Instance)
}

// Less orders ids by space, type, then instance.
func (id ObjectID) Less(other ObjectID) bool {
	if id.Space != other.Space {
		return id.Space < other.Space
	}
	if id.Type != other.Type {
		return id.Type < other.Type
	}
	return id.Instance < other.Instance
}

// Key is the 10 byte big-endian store key for the id.
func (id ObjectID) Key() []byte {
	var b [10]byte
	b[0], b[1] = id.Space, id.Type
	binary.BigEndian.PutUint64(b[2:], id.Instance)
	return b[:]
}

// ObjectIDFromKey decodes a key produced by ObjectID.Key.
func ObjectIDFromKey(b []byte) (ObjectID, bool) {
	if len(b) != 10 {
		return ObjectID{}, false
	}
	return ObjectID{Space: b[0], Type: b[1], Instance: binary.BigEndian.Uint64(b[2:])}, true
}

// ParseObjectID parses the "space.type.instance" form.
func ParseObjectID(s string) (ObjectID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ObjectID{}, fmt.Errorf("invalid object id %q", s)
	}
	space, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return ObjectID{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	typ, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return ObjectID{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	inst, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return ObjectID{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return ObjectID{Space: uint8(space), Type: uint8(typ), Instance: inst}, nil
}

// Typed instance ids. Each maps onto one object kind.
type (
	AccountID           uint64
	AssetID             uint64
	WitnessID           uint64
	ProposalID          uint64
	VestingBalanceID    uint64
	ContractID          uint64
	CrontabID           uint64
	AssetDynamicDataID  uint64
	AccountStatisticsID uint64
	FBAAccumulatorID    uint64
)

func (id AccountID) ObjectID() ObjectID           { return NewObjectID(AccountKind, uint64(id)) }
func (id AssetID) ObjectID() ObjectID             { return NewObjectID(AssetKind, uint64(id)) }
func (id WitnessID) ObjectID() ObjectID           { return NewObjectID(WitnessKind, uint64(id)) }
func (id ProposalID) ObjectID() ObjectID          { return NewObjectID(ProposalKind, uint64(id)) }
func (id VestingBalanceID) ObjectID() ObjectID    { return NewObjectID(VestingBalanceKind, uint64(id)) }
func (id ContractID) ObjectID() ObjectID          { return NewObjectID(ContractKind, uint64(id)) }
func (id CrontabID) ObjectID() ObjectID           { return NewObjectID(CrontabKind, uint64(id)) }
func (id AssetDynamicDataID) ObjectID() ObjectID  { return NewObjectID(AssetDynamicDataKind, uint64(id)) }
func (id AccountStatisticsID) ObjectID() ObjectID { return NewObjectID(AccountStatisticsKind, uint64(id)) }
func (id FBAAccumulatorID) ObjectID() ObjectID    { return NewObjectID(FBAAccumulatorKind, uint64(id)) }

func (id AccountID) String() string { return id.ObjectID().String() }
func (id AssetID) String() string   { return id.ObjectID().String() }

// Reserved accounts created at genesis, in this order.
const (
	CommitteeAccount        AccountID = 0
	WitnessAccount          AccountID = 1
	RelaxedCommitteeAccount AccountID = 2
	NullAccount             AccountID = 3
	TempAccount             AccountID = 4
)

// IsSystemAccount reports whether id is one of the reserved accounts
// whose cashback is burned instead of vested. The relaxed committee
// account vests like any other.
func IsSystemAccount(id AccountID) bool {
	switch id {
	case CommitteeAccount, WitnessAccount, NullAccount, TempAccount:
		return true
	}
	return false
}

// CoreAsset is the asset fees are ultimately denominated in.
const CoreAsset AssetID = 0

// Singleton object ids.
var (
	GlobalPropertyID        = NewObjectID(GlobalPropertyKind, 0)
	DynamicGlobalPropertyID = NewObjectID(DynamicGlobalPropertyKind, 0)
)

// FBA accumulators created at genesis.
const (
	FBATransferToBlind   FBAAccumulatorID = 0
	FBABlindTransfer     FBAAccumulatorID = 1
	FBATransferFromBlind FBAAccumulatorID = 2
)
