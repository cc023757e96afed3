// Package genesis builds the initial chain state from a genesis document.
package genesis

import (
	"github.com/rs/zerolog"

	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// DefaultCoreSymbol is used when the document names no core asset.
const DefaultCoreSymbol = "CORE"

var reservedAccounts = []string{
	"committee-account",
	"witness-account",
	"relaxed-committee-account",
	"null-account",
	"temp-account",
}

// Default returns a document for a fresh chain at time at, with one
// lifetime member account per name. Each account holds supply core and
// the first one is the only witness.
func Default(at types.TimePoint, supply int64, names ...string) types.GenesisDoc {
	doc := types.GenesisDoc{
		ChainID:           "ledger-devnet",
		GenesisTime:       at,
		InitialParameters: types.DefaultChainParameters(),
		CoreSymbol:        DefaultCoreSymbol,
	}
	for _, n := range names {
		doc.InitialAccounts = append(doc.InitialAccounts, types.GenesisAccount{Name: n, IsLifetimeMember: true})
		doc.InitialBalances = append(doc.InitialBalances, types.GenesisBalance{Owner: n, Symbol: DefaultCoreSymbol, Amount: supply})
	}
	if len(names) > 0 {
		doc.InitialWitnesses = []types.GenesisWitness{{OwnerName: names[0]}}
	}
	return doc
}

// Validate checks the document before any state is written.
func Validate(doc *types.GenesisDoc) error {
	if doc.GenesisTime <= 0 {
		return errors.BadRequest.With("genesis time must be set")
	}
	if err := doc.InitialParameters.Validate(); err != nil {
		return errors.BadRequest.WithFormat("initial parameters: %w", err)
	}
	names := map[string]bool{}
	for _, n := range reservedAccounts {
		names[n] = true
	}
	for _, a := range doc.InitialAccounts {
		if !types.IsValidAccountName(a.Name) {
			return errors.BadRequest.WithFormat("invalid account name %q", a.Name)
		}
		if names[a.Name] {
			return errors.BadRequest.WithFormat("account %q defined twice", a.Name)
		}
		names[a.Name] = true
	}
	for _, b := range doc.InitialBalances {
		if !names[b.Owner] {
			return errors.BadRequest.WithFormat("balance owner %q is not a genesis account", b.Owner)
		}
		if b.Amount <= 0 {
			return errors.BadRequest.WithFormat("balance of %q must be positive", b.Owner)
		}
	}
	for _, w := range doc.InitialWitnesses {
		if !names[w.OwnerName] {
			return errors.BadRequest.WithFormat("witness owner %q is not a genesis account", w.OwnerName)
		}
	}
	return nil
}

type builder struct {
	store    *store.Store
	ledger   *balance.Ledger
	doc      *types.GenesisDoc
	accounts map[string]types.AccountID
	assets   map[string]*types.AssetObject
}

// Init writes the genesis state described by doc and commits it. The
// store must be empty and have no open session.
func Init(s *store.Store, doc types.GenesisDoc, logger zerolog.Logger) error {
	if doc.CoreSymbol == "" {
		doc.CoreSymbol = DefaultCoreSymbol
	}
	if err := Validate(&doc); err != nil {
		return err
	}
	if s.Has(types.GlobalPropertyID) {
		return errors.Precondition.With("store already holds a chain")
	}
	b := &builder{
		store:    s,
		ledger:   balance.New(s, logger),
		doc:      &doc,
		accounts: map[string]types.AccountID{},
		assets:   map[string]*types.AssetObject{},
	}
	err := store.WithSession(s, func(ss *store.Session) error {
		if err := b.build(); err != nil {
			return err
		}
		return ss.Commit()
	})
	if err != nil {
		return err
	}
	logger.Info().Str("chain_id", doc.ChainID).Int("accounts", len(doc.InitialAccounts)).Msg("Genesis state created")
	return nil
}

func (b *builder) build() error {
	params := b.doc.InitialParameters
	if _, err := store.Create(b.store, &types.GlobalPropertyObject{Parameters: params}); err != nil {
		return err
	}
	interval := types.TimePoint(params.MaintenanceInterval)
	_, err := store.Create(b.store, &types.DynamicGlobalPropertyObject{
		Time:                b.doc.GenesisTime,
		NextMaintenanceTime: (b.doc.GenesisTime/interval + 1) * interval,
		LastBudgetTime:      b.doc.GenesisTime,
		RecentSlotsFilled:   types.Uint128{Hi: ^uint64(0), Lo: ^uint64(0)},
	})
	if err != nil {
		return err
	}

	for _, name := range reservedAccounts {
		if _, err := b.account(name, nil, nil, true); err != nil {
			return err
		}
	}
	if _, err := b.asset(types.GenesisAsset{
		Symbol:     b.doc.CoreSymbol,
		IssuerName: reservedAccounts[types.CommitteeAccount],
		Precision:  5,
		MaxSupply:  types.MaxShareSupply,
	}); err != nil {
		return err
	}
	for range []types.FBAAccumulatorID{types.FBATransferToBlind, types.FBABlindTransfer, types.FBATransferFromBlind} {
		if _, err := store.Create(b.store, &types.FBAAccumulatorObject{}); err != nil {
			return err
		}
	}

	for _, a := range b.doc.InitialAccounts {
		if _, err := b.account(a.Name, a.OwnerKey, a.ActiveKey, a.IsLifetimeMember); err != nil {
			return err
		}
	}
	for _, a := range b.doc.InitialAssets {
		if _, err := b.asset(a); err != nil {
			return err
		}
	}
	for _, bal := range b.doc.InitialBalances {
		asset, ok := b.assets[bal.Symbol]
		if !ok {
			return errors.BadRequest.WithFormat("balance in unknown asset %q", bal.Symbol)
		}
		if err := b.ledger.AdjustBalance(b.accounts[bal.Owner], asset.Amount(bal.Amount), false); err != nil {
			return err
		}
		if err := b.supply(asset, bal.Amount); err != nil {
			return err
		}
	}

	var active []types.WitnessID
	for _, w := range b.doc.InitialWitnesses {
		wit, err := store.Create(b.store, &types.WitnessObject{
			WitnessAccount: b.accounts[w.OwnerName],
			SigningKey:     w.BlockSigningKey,
		})
		if err != nil {
			return err
		}
		active = append(active, wit.WitnessID())
	}
	return store.Modify(b.store, store.GlobalProperties(b.store), func(g *types.GlobalPropertyObject) {
		g.ActiveWitnesses = active
		g.ActiveCommitteeMembers = []types.AccountID{types.CommitteeAccount}
	})
}

func (b *builder) account(name string, ownerKey, activeKey types.PublicKey, lifetime bool) (types.AccountID, error) {
	id := types.AccountID(b.store.NextID(types.AccountKind).Instance)
	stats, err := store.Create(b.store, &types.AccountStatisticsObject{Owner: id})
	if err != nil {
		return 0, err
	}
	params := b.doc.InitialParameters
	acct := &types.AccountObject{
		Name:                          name,
		Registrar:                     id,
		Referrer:                      id,
		LifetimeReferrer:              id,
		NetworkFeePercentage:          params.NetworkPercentOfFee,
		LifetimeReferrerFeePercentage: uint16(types.Percent100) - params.NetworkPercentOfFee,
		Owner:                         keyAuthority(ownerKey),
		Active:                        keyAuthority(activeKey),
		Statistics:                    types.AccountStatisticsID(stats.ID.Instance),
	}
	if lifetime {
		acct.MembershipExpiration = types.MaxTimePoint
	}
	if _, err := store.Create(b.store, acct); err != nil {
		return 0, err
	}
	b.accounts[name] = id
	return id, nil
}

func keyAuthority(key types.PublicKey) types.Authority {
	if len(key) == 0 {
		return types.Authority{}
	}
	return types.Authority{WeightThreshold: 1, KeyAuths: []types.KeyWeight{{Key: key, Weight: 1}}}
}

func (b *builder) asset(a types.GenesisAsset) (*types.AssetObject, error) {
	if _, ok := b.assets[a.Symbol]; ok {
		return nil, errors.BadRequest.WithFormat("asset %q defined twice", a.Symbol)
	}
	issuer, ok := b.accounts[a.IssuerName]
	if !ok {
		return nil, errors.BadRequest.WithFormat("asset issuer %q is not a genesis account", a.IssuerName)
	}
	dyn, err := store.Create(b.store, &types.AssetDynamicDataObject{})
	if err != nil {
		return nil, err
	}
	id := types.AssetID(b.store.NextID(types.AssetKind).Instance)
	cer := a.CoreExchangeRate
	if cer.IsNull() {
		cer = types.Price{Base: types.NewAsset(1, id), Quote: types.NewAsset(1, types.CoreAsset)}
	}
	asset, err := store.Create(b.store, &types.AssetObject{
		Symbol:    a.Symbol,
		Precision: a.Precision,
		Issuer:    issuer,
		Options: types.AssetOptions{
			MaxSupply:        a.MaxSupply,
			CoreExchangeRate: cer,
		},
		DynamicAssetDataID: types.AssetDynamicDataID(dyn.ID.Instance),
	})
	if err != nil {
		return nil, err
	}
	b.assets[a.Symbol] = asset

	if a.FeePool > 0 {
		err := store.Modify(b.store, dyn, func(d *types.AssetDynamicDataObject) { d.FeePool = a.FeePool })
		if err != nil {
			return nil, err
		}
		core := b.assets[b.doc.CoreSymbol]
		if err := b.supply(core, a.FeePool); err != nil {
			return nil, err
		}
	}
	return asset, nil
}

// supply raises the recorded supply of asset by n.
func (b *builder) supply(asset *types.AssetObject, n int64) error {
	dyn, err := store.Load[*types.AssetDynamicDataObject](b.store, asset.DynamicAssetDataID.ObjectID())
	if err != nil {
		return err
	}
	if dyn.CurrentSupply+n > asset.Options.MaxSupply {
		return errors.BadRequest.WithFormat("genesis supply of %s exceeds its maximum", asset.Symbol)
	}
	return store.Modify(b.store, dyn, func(d *types.AssetDynamicDataObject) { d.CurrentSupply += n })
}
