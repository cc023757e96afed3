package chain

import (
	"context"
	"crypto/sha256"
	"slices"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/evaluator"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

const (
	// irreversibleThreshold is the share of active witnesses, in parts
	// of types.Percent100, that must confirm a block for it to become
	// irreversible.
	irreversibleThreshold = 7000

	missedCountIncrement = 4
	missedCountDecrement = 3
)

// finalize advances head state past b and runs the housekeeping that
// follows every block. It returns the block events and the parameters a
// maintenance pass activated, if any.
func (c *Chain) finalize(ctx context.Context, b *types.SignedBlock, id types.BlockID) ([]types.Event, *types.ChainParameters, error) {
	maintenance := b.Header.Timestamp >= store.DynamicGlobals(c.store).NextMaintenanceTime

	if err := c.payWitness(b.Header.Witness); err != nil {
		return nil, nil, err
	}
	if err := c.updateGlobals(b, id); err != nil {
		return nil, nil, err
	}
	if err := c.updateIrreversible(); err != nil {
		return nil, nil, err
	}
	if err := c.updateBlockSummary(b.Num(), id); err != nil {
		return nil, nil, err
	}
	if err := c.clearExpiredTransactions(); err != nil {
		return nil, nil, err
	}
	events, err := c.clearExpiredSchedules()
	if err != nil {
		return nil, nil, err
	}
	if !maintenance {
		return events, nil, nil
	}
	more, update, err := c.performMaintenance(ctx, b.Header.Timestamp)
	if err != nil {
		return nil, nil, errors.Fatal.WithFormat("maintenance: %w", err)
	}
	return append(events, more...), update, nil
}

// payWitness pays the producer of a block out of the witness budget.
func (c *Chain) payWitness(id types.WitnessID) error {
	dgp := store.DynamicGlobals(c.store)
	pay := min(store.Parameters(c.store).WitnessPayPerBlock, dgp.WitnessBudget)
	if pay <= 0 {
		return nil
	}
	wit, err := store.Load[*types.WitnessObject](c.store, id.ObjectID())
	if err != nil {
		return err
	}
	if err := store.Modify(c.store, dgp, func(d *types.DynamicGlobalPropertyObject) { d.WitnessBudget -= pay }); err != nil {
		return err
	}
	return c.dispatcher.Ledger().DepositWitnessPay(wit, pay)
}

// updateGlobals moves the head to b and records the slots missed since
// the previous block.
func (c *Chain) updateGlobals(b *types.SignedBlock, id types.BlockID) error {
	dgp := store.DynamicGlobals(c.store)
	interval := int64(store.Parameters(c.store).BlockInterval)
	var missed uint64
	if dgp.HeadBlockNumber > 0 {
		if slots := b.Header.Timestamp.Sub(dgp.Time) / interval; slots > 1 {
			missed = uint64(slots - 1)
		}
	}
	err := store.Modify(c.store, dgp, func(d *types.DynamicGlobalPropertyObject) {
		d.HeadBlockNumber = b.Num()
		d.HeadBlockID = id
		d.Time = b.Header.Timestamp
		d.CurrentWitness = b.Header.Witness
		d.CurrentAslot += missed + 1
		d.CurrentOpIndex = c.opIndex

		filled := d.RecentSlotsFilled.Int()
		if missed+1 >= 128 {
			filled.Clear()
		} else {
			filled.Lsh(filled, uint(missed+1))
		}
		d.RecentSlotsFilled = types.Uint128From(filled.Or(filled, uint256.NewInt(1)))

		if missed < 2 {
			d.RecentlyMissedCount -= min(d.RecentlyMissedCount, missedCountDecrement)
		} else {
			d.RecentlyMissedCount += uint32(missed) * missedCountIncrement
		}
	})
	if err != nil {
		return err
	}
	wit, err := store.Load[*types.WitnessObject](c.store, b.Header.Witness.ObjectID())
	if err != nil {
		return err
	}
	return store.Modify(c.store, wit, func(w *types.WitnessObject) {
		w.LastAslot = dgp.CurrentAslot
		w.LastConfirmedBlockNum = b.Num()
	})
}

// updateIrreversible moves the last irreversible block to the newest
// block confirmed by enough active witnesses.
func (c *Chain) updateIrreversible() error {
	var confirmed []uint32
	for _, id := range store.GlobalProperties(c.store).ActiveWitnesses {
		if wit, ok := store.Find[*types.WitnessObject](c.store, id.ObjectID()); ok {
			confirmed = append(confirmed, wit.LastConfirmedBlockNum)
		}
	}
	if len(confirmed) == 0 {
		return nil
	}
	slices.Sort(confirmed)
	lib := confirmed[int(types.Percent100-irreversibleThreshold)*len(confirmed)/int(types.Percent100)]
	dgp := store.DynamicGlobals(c.store)
	if lib <= dgp.LastIrreversibleBlockNum {
		return nil
	}
	return store.Modify(c.store, dgp, func(d *types.DynamicGlobalPropertyObject) { d.LastIrreversibleBlockNum = lib })
}

// updateBlockSummary records id in the summary slot of its block number
// so transactions can reference it.
func (c *Chain) updateBlockSummary(num uint32, id types.BlockID) error {
	slot := uint64(num & 0xffff)
	if sum, ok := store.Find[*types.BlockSummaryObject](c.store, types.NewObjectID(types.BlockSummaryKind, slot)); ok {
		return store.Modify(c.store, sum, func(s *types.BlockSummaryObject) { s.BlockID = id })
	}
	for c.store.NextID(types.BlockSummaryKind).Instance < slot {
		if _, err := store.Create(c.store, &types.BlockSummaryObject{}); err != nil {
			return err
		}
	}
	_, err := store.Create(c.store, &types.BlockSummaryObject{BlockID: id})
	return err
}

// clearExpiredTransactions drops dedupe records of transactions that can
// no longer be included.
func (c *Chain) clearExpiredTransactions() error {
	now := store.HeadTime(c.store)
	var expired []types.ObjectID
	c.store.Scan(types.TransactionKind, func(o types.Object) bool {
		if t := o.(*types.TransactionObject); t.Expiration < now {
			expired = append(expired, t.ID)
		}
		return true
	})
	for _, id := range expired {
		if err := store.Remove(c.store, id); err != nil {
			return err
		}
	}
	return nil
}

// clearExpiredSchedules removes proposals that can no longer execute and
// crontabs past their expiration. A crontab whose last execution is due
// gets the task lifetime to run it first.
func (c *Chain) clearExpiredSchedules() ([]types.Event, error) {
	now := store.HeadTime(c.store)
	var removed []types.ObjectID
	for _, p := range store.All[*types.ProposalObject](c.store, types.ProposalKind) {
		if !p.AllowExecution && p.ExpirationTime <= now || p.AllowExecution && p.ProposedTransaction.Expiration < now {
			removed = append(removed, p.ID)
		}
	}
	var events []types.Event
	lifetime := evaluator.TaskLifetime(store.Parameters(c.store))
	for _, t := range store.All[*types.CrontabObject](c.store, types.CrontabKind) {
		due := t.ExpirationTime
		if !t.IsSuspended && t.NextExecuteTime <= t.ExpirationTime {
			// The last execution may still be pending.
			due = due.Add(lifetime)
		}
		if due > now {
			continue
		}
		removed = append(removed, t.ID)
		events = append(events, crontabEvent(t, "expired"))
	}
	for _, id := range removed {
		if err := store.Remove(c.store, id); err != nil {
			return nil, err
		}
	}
	if len(removed) > 0 {
		c.logger.Info().Int("entries", len(removed)).Msg("Expired schedule entries removed")
	}
	return events, nil
}

// performMaintenance runs the periodic pass and moves the next
// maintenance time past at, so the pass runs once per interval.
func (c *Chain) performMaintenance(ctx context.Context, at types.TimePoint) ([]types.Event, *types.ChainParameters, error) {
	if err := c.dispatcher.Meter().ProcessPendingFees(); err != nil {
		return nil, nil, err
	}

	var update *types.ChainParameters
	gpo := store.GlobalProperties(c.store)
	if gpo.PendingParameters != nil {
		next := *gpo.PendingParameters
		err := store.Modify(c.store, gpo, func(g *types.GlobalPropertyObject) {
			g.Parameters = next
			g.PendingParameters = nil
		})
		if err != nil {
			return nil, nil, err
		}
		update = &next
	}

	events, err := c.distributeFBA(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := c.refillWitnessBudget(at); err != nil {
		return nil, nil, err
	}

	p := store.Parameters(c.store)
	dgp := store.DynamicGlobals(c.store)
	interval := int64(p.MaintenanceInterval)
	next := dgp.NextMaintenanceTime
	if next <= at {
		next = next.Add((at.Sub(next)/interval + 1) * interval)
	}
	if err := store.Modify(c.store, dgp, func(d *types.DynamicGlobalPropertyObject) { d.NextMaintenanceTime = next }); err != nil {
		return nil, nil, err
	}

	maintenanceRuns.Inc()
	c.logger.Info().Stringer("next_maintenance_time", next).Bool("parameters_updated", update != nil).Msg("Maintenance run")
	events = append(events, types.Event{Kind: types.EventMaintenance, Attributes: []types.EventAttribute{
		{Key: "next_maintenance_time", Value: next.String()},
		{Key: "parameters_updated", Value: strconv.FormatBool(update != nil)},
	}})
	return events, update, nil
}

// distributeFBA pays the fees held by every configured accumulator to
// its buyback account.
func (c *Chain) distributeFBA(ctx context.Context) ([]types.Event, error) {
	var events []types.Event
	for _, acc := range store.All[*types.FBAAccumulatorObject](c.store, types.FBAAccumulatorKind) {
		if acc.AccumulatedFBAFees <= 0 {
			continue
		}
		to, ok := c.dispatcher.Meter().FBARecipient(acc)
		if !ok {
			continue
		}
		vop := &types.FBADistributeOperation{
			Account: to,
			FBA:     types.FBAAccumulatorID(acc.ID.Instance),
			Amount:  acc.AccumulatedFBAFees,
		}
		if _, err := c.dispatcher.ApplyVirtual(ctx, vop); err != nil {
			return nil, err
		}
		events = append(events, types.Event{Kind: types.EventVirtualOp, Attributes: []types.EventAttribute{
			{Key: "type", Value: vop.Type().String(), Index: true},
			{Key: "account", Value: to.String(), Index: true},
			{Key: "amount", Value: strconv.FormatInt(vop.Amount, 10)},
		}})
	}
	return events, nil
}

// refillWitnessBudget moves collected core fees into the witness budget,
// up to the pay of every block of the coming interval.
func (c *Chain) refillWitnessBudget(at types.TimePoint) error {
	p := store.Parameters(c.store)
	dgp := store.DynamicGlobals(c.store)
	core, err := c.dispatcher.Ledger().CoreDynamicData()
	if err != nil {
		return err
	}
	want := p.WitnessPayPerBlock * int64(p.MaintenanceInterval/uint32(p.BlockInterval))
	take := min(want-dgp.WitnessBudget, core.AccumulatedFees)
	if take > 0 {
		if err := store.Modify(c.store, core, func(d *types.AssetDynamicDataObject) { d.AccumulatedFees -= take }); err != nil {
			return err
		}
	}
	return store.Modify(c.store, dgp, func(d *types.DynamicGlobalPropertyObject) {
		d.WitnessBudget += max(take, 0)
		d.LastBudgetTime = at
	})
}

// appHash fingerprints the state change of a block: the block linkage
// followed by every touched object id and the digest of its new value.
func (c *Chain) appHash(prev, id types.BlockID, ch store.Changes) (types.AppHash, error) {
	touched := make([]types.ObjectID, 0, len(ch.New)+len(ch.Changed)+len(ch.Removed))
	touched = append(touched, ch.New...)
	touched = append(touched, ch.Changed...)
	for _, o := range ch.Removed {
		touched = append(touched, o.GetID())
	}
	slices.SortFunc(touched, func(a, b types.ObjectID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	touched = slices.Compact(touched)

	h := sha256.New()
	h.Write(prev[:])
	h.Write(id[:])
	for _, oid := range touched {
		h.Write(oid.Key())
		obj, err := c.store.Get(oid)
		if err != nil {
			// removed
			continue
		}
		d, err := types.Digest(obj)
		if err != nil {
			return types.AppHash{}, errors.Internal.Wrap(err)
		}
		h.Write(d[:])
	}
	var out types.AppHash
	copy(out[:], h.Sum(nil))
	return out, nil
}
