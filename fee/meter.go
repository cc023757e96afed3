// Package fee computes operation fees and routes them: conversion through
// an asset's fee pool, accrual on the payer's statistics, fee-backed
// accumulators, the contract call surcharge and the periodic payout of
// pending fees.
package fee

import (
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/balance"
	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// Meter prices operations and collects their fees.
type Meter struct {
	store  *store.Store
	ledger *balance.Ledger
	auth   ledger.AuthorityOracle
	logger zerolog.Logger
}

// New returns a meter over s. A nil oracle falls back to the asset's own
// white and black lists.
func New(s *store.Store, l *balance.Ledger, auth ledger.AuthorityOracle, logger zerolog.Logger) *Meter {
	if auth == nil {
		auth = ledger.AssetListAuthority{}
	}
	return &Meter{store: s, ledger: l, auth: auth, logger: logger}
}

// Charge is the fee state of one operation, built by Prepare and settled
// by PayFee or PayFBAFee.
type Charge struct {
	Payer types.AccountID
	// Fee is the amount the payer declared, in the fee asset.
	Fee types.Asset
	// CorePaid is Fee converted to core.
	CorePaid int64
	// Surcharge is the extra core the payer owes for a contract call.
	Surcharge int64
	// Owner pays OwnerFee in core when a contract call is shared with
	// the contract owner.
	Owner    types.AccountID
	OwnerFee int64
	// Skip disables fee collection entirely.
	Skip bool
}

// Calculate returns the core fee the schedule requires for op.
func (m *Meter) Calculate(op types.Operation) (int64, error) {
	sched := store.Parameters(m.store).CurrentFees
	p := sched.Lookup(op.Type())

	total := p.Fee
	if ds, ok := op.(types.DataSizer); ok && p.PricePerKByte > 0 {
		data, err := types.CalculateDataFee(ds.DataSize(), p.PricePerKByte)
		if err != nil {
			return 0, errors.BadRequest.Wrap(err)
		}
		total += uint64(data)
	}
	fee, err := types.MulDiv(total, uint64(sched.Scale), uint64(types.Percent100))
	if err != nil {
		return 0, errors.BadRequest.Wrap(err)
	}
	return fee, nil
}

// Prepare loads the payer and fee asset of op, checks that the payer may
// use the asset and converts the declared fee to core. A non-core fee
// must be covered by the asset's fee pool.
func (m *Meter) Prepare(op types.Operation, skip bool) (*Charge, error) {
	payer, err := store.Load[*types.AccountObject](m.store, op.FeePayer().ObjectID())
	if err != nil {
		return nil, err
	}
	fee := op.FeeAmount()
	asset, err := store.Load[*types.AssetObject](m.store, fee.AssetID.ObjectID())
	if err != nil {
		return nil, err
	}
	if !m.auth.IsAuthorized(payer.AccountID(), asset) {
		return nil, errors.Unauthorized.WithFormat("account %s may not pay fees in %s", payer.Name, asset.Symbol)
	}

	c := &Charge{Payer: payer.AccountID(), Fee: fee, Skip: skip}
	if fee.AssetID == types.CoreAsset {
		c.CorePaid = fee.Amount
	} else {
		dyn, err := m.ledger.DynamicData(fee.AssetID)
		if err != nil {
			return nil, err
		}
		core, err := asset.Options.CoreExchangeRate.Multiply(fee)
		if err != nil {
			return nil, errors.BadRequest.WithFormat("convert fee %v: %w", fee, err)
		}
		if core.AssetID != types.CoreAsset {
			return nil, errors.BadRequest.WithFormat("core exchange rate of %s does not quote core", asset.Symbol)
		}
		if core.Amount > dyn.FeePool {
			return nil, errors.Consistency.WithFormat("fee pool of %s holds %d, %d required", asset.Symbol, dyn.FeePool, core.Amount)
		}
		c.CorePaid = core.Amount
	}

	if skip {
		return c, nil
	}
	required, err := m.Calculate(op)
	if err != nil {
		return nil, err
	}
	if c.CorePaid < required {
		return nil, errors.InsufficientBalance.WithFormat("insufficient fee for %v: paid %d, required %d", op.Type(), c.CorePaid, required)
	}
	return c, nil
}

// ConvertFee moves a non-core fee into the asset's accumulated fees and
// takes its core value out of the fee pool.
func (m *Meter) ConvertFee(c *Charge) error {
	if c.Skip || c.Fee.AssetID == types.CoreAsset || c.Fee.Amount == 0 {
		return nil
	}
	dyn, err := m.ledger.DynamicData(c.Fee.AssetID)
	if err != nil {
		return err
	}
	if c.CorePaid > dyn.FeePool {
		return errors.Consistency.WithFormat("fee pool of %v holds %d, %d required", c.Fee.AssetID, dyn.FeePool, c.CorePaid)
	}
	return store.Modify(m.store, dyn, func(d *types.AssetDynamicDataObject) {
		d.AccumulatedFees += c.Fee.Amount
		d.FeePool -= c.CorePaid
	})
}

// PayFee settles c: the payer is debited, the core value accrues on its
// statistics and the amounts are recorded on res.
func (m *Meter) PayFee(c *Charge, res *types.OperationResult) error {
	if c.Skip {
		return nil
	}
	if err := m.ConvertFee(c); err != nil {
		return err
	}
	if err := m.accrue(c.Payer, c.CorePaid+c.Surcharge); err != nil {
		return err
	}
	return m.debit(c, res)
}

func (m *Meter) debit(c *Charge, res *types.OperationResult) error {
	if err := m.ledger.AdjustBalance(c.Payer, c.Fee.Neg(), false); err != nil {
		return err
	}
	res.AddFee(c.Fee)
	if c.Surcharge > 0 {
		extra := types.NewAsset(c.Surcharge, types.CoreAsset)
		if err := m.ledger.AdjustBalance(c.Payer, extra.Neg(), false); err != nil {
			return err
		}
		res.AddFee(extra)
	}
	if c.OwnerFee > 0 {
		if err := m.accrue(c.Owner, c.OwnerFee); err != nil {
			return err
		}
		owed := types.NewAsset(c.OwnerFee, types.CoreAsset)
		if err := m.ledger.AdjustBalance(c.Owner, owed.Neg(), false); err != nil {
			return err
		}
		res.AddFee(owed)
	}
	feesCollected.Add(float64(c.CorePaid + c.Surcharge + c.OwnerFee))
	return nil
}

func (m *Meter) accrue(account types.AccountID, core int64) error {
	if core == 0 {
		return nil
	}
	acct, err := store.Load[*types.AccountObject](m.store, account.ObjectID())
	if err != nil {
		return err
	}
	stats, err := store.Load[*types.AccountStatisticsObject](m.store, acct.Statistics.ObjectID())
	if err != nil {
		return err
	}
	threshold := store.Parameters(m.store).CashbackVestingThreshold
	return store.Modify(m.store, stats, func(s *types.AccountStatisticsObject) {
		s.PayFee(core, threshold)
	})
}

// PayFBAFee routes the core fee of c into the accumulator fba when it is
// configured, and settles c like PayFee otherwise. Any surcharge still
// accrues on the payer's statistics.
func (m *Meter) PayFBAFee(c *Charge, fba types.FBAAccumulatorID, res *types.OperationResult) error {
	if c.Skip {
		return nil
	}
	acc, err := store.Load[*types.FBAAccumulatorObject](m.store, fba.ObjectID())
	if err != nil {
		return err
	}
	if !m.isConfigured(acc) {
		return m.PayFee(c, res)
	}
	if err := m.ConvertFee(c); err != nil {
		return err
	}
	err = store.Modify(m.store, acc, func(a *types.FBAAccumulatorObject) {
		a.AccumulatedFBAFees += c.CorePaid
	})
	if err != nil {
		return err
	}
	if err := m.accrue(c.Payer, c.Surcharge); err != nil {
		return err
	}
	return m.debit(c, res)
}

// FBARecipient returns the buyback account the fees held by acc are
// distributed to, if acc is configured.
func (m *Meter) FBARecipient(acc *types.FBAAccumulatorObject) (types.AccountID, bool) {
	if !m.isConfigured(acc) {
		return 0, false
	}
	asset, _ := store.Find[*types.AssetObject](m.store, acc.DesignatedAsset.ObjectID())
	return *asset.BuybackAccount, true
}

// isConfigured reports whether fees routed to acc can be distributed: its
// designated asset exists, is user issued with only the market fee
// permission, has a buyback account, and its issuer hands both owner and
// active authority to the asset's top holders.
func (m *Meter) isConfigured(acc *types.FBAAccumulatorObject) bool {
	log := m.logger.Debug().Stringer("fba", acc.ID).Uint32("block_num", store.DynamicGlobals(m.store).HeadBlockNumber)
	if acc.DesignatedAsset == nil {
		log.Msg("FBA fee not routed, no designated asset")
		return false
	}
	asset, ok := store.Find[*types.AssetObject](m.store, acc.DesignatedAsset.ObjectID())
	switch {
	case !ok:
		log.Msg("FBA fee not routed, designated asset does not exist")
		return false
	case asset.IsMarketIssued():
		log.Msg("FBA fee not routed, designated asset is market issued")
		return false
	case asset.Options.IssuerPermissions&^types.ChargeMarketFee != 0 || asset.Options.Flags&^types.ChargeMarketFee != 0:
		log.Msg("FBA fee not routed, disallowed permissions enabled")
		return false
	case asset.BuybackAccount == nil:
		log.Msg("FBA fee not routed, designated asset has no buyback account")
		return false
	}

	issuer, ok := store.Find[*types.AccountObject](m.store, asset.Issuer.ObjectID())
	if !ok || issuer.OwnerSpecialAuthority == nil || issuer.ActiveSpecialAuthority == nil {
		log.Msg("FBA fee not routed, issuer has not set top holder control")
		return false
	}
	if issuer.OwnerSpecialAuthority.Asset != *acc.DesignatedAsset || issuer.ActiveSpecialAuthority.Asset != *acc.DesignatedAsset {
		log.Msg("FBA fee not routed, issuer top holder control names another asset")
		return false
	}
	if issuer.TopNControlFlags != types.TopNControlOwner|types.TopNControlActive {
		log.Msg("FBA fee not routed, top holder control not yet active")
		return false
	}
	log.Discard()
	return true
}

// ContractSurcharge prices the data touched and the time spent by a
// contract call and adds it to c. The caller pays its invoke share of the
// surcharge and the contract owner the rest. The whole handling fee must
// stay under the schedule's ceiling.
func (m *Meter) ContractSurcharge(c *Charge, contract *types.ContractObject, r *types.ContractResult, runningTime uint64) error {
	sched := store.Parameters(m.store).CurrentFees
	p := sched.Lookup(types.OpCallContractFunction)

	data, err := types.CalculateDataFee(r.RelevantDataSize, p.PricePerKByte)
	if err != nil {
		return errors.FeeCeiling.Wrap(err)
	}
	run, err := types.CalculateRunTimeFee(runningTime, p.PricePerMillisecond)
	if err != nil {
		return errors.FeeCeiling.Wrap(err)
	}
	extra, err := types.MulDiv(uint64(data+run), uint64(sched.Scale), uint64(types.Percent100))
	if err != nil {
		return errors.FeeCeiling.Wrap(err)
	}
	if total := c.CorePaid + extra; total >= sched.MaximumHandlingFee {
		return errors.FeeCeiling.WithFormat("handling fee %d reaches the ceiling %d", total, sched.MaximumHandlingFee)
	}

	share := int64(min(contract.UserInvokeSharePercent, 100))
	user := extra * share / 100
	c.Surcharge = user
	c.Owner = contract.Owner
	c.OwnerFee = extra - user
	return nil
}

// cutFee returns p parts of Percent100 of a.
func cutFee(a int64, p uint16) int64 {
	if a == 0 || p == 0 {
		return 0
	}
	if int64(p) == types.Percent100 {
		return a
	}
	r := new(uint256.Int).Mul(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(p)))
	r.Div(r, uint256.NewInt(uint64(types.Percent100)))
	return int64(r.Uint64())
}
