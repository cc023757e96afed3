package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/evaluator"
	"github.com/blockberries/ledger/sandbox"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// PushTransaction applies tx to the pending pool. The changes stay
// revertible until the next block operation sets the pool aside.
func (c *Chain) PushTransaction(ctx context.Context, tx types.SignedTransaction) (types.ProcessedTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.guard.load(); !s.settled() {
		return types.ProcessedTransaction{}, errors.Precondition.WithFormat("cannot push a transaction in state %v", s)
	}
	if c.pending == nil {
		c.pending = c.store.StartSession()
	}
	defer c.cfg.Scope(types.ExecutionConfig{Mode: types.ModeAuthoring})()

	ptx := types.ProcessedTransaction{Signed: tx}
	if _, err := c.applyTransaction(ctx, &ptx); err != nil {
		trxDropped.WithLabelValues(errors.Code(err).String()).Inc()
		return types.ProcessedTransaction{}, err
	}
	c.pendingTxs = append(c.pendingTxs, ptx)
	return ptx, nil
}

// DryRun applies tx on top of the pending pool and discards the result.
func (c *Chain) DryRun(ctx context.Context, tx types.SignedTransaction) (types.ProcessedTransaction, []types.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.guard.load(); !s.settled() {
		return types.ProcessedTransaction{}, nil, errors.Precondition.WithFormat("cannot simulate in state %v", s)
	}
	defer c.cfg.Scope(types.ExecutionConfig{Mode: types.ModeDryRun})()

	ss := c.store.StartSession()
	defer ss.Undo()
	ptx := types.ProcessedTransaction{Signed: tx}
	start := c.opIndex
	defer func() { c.opIndex = start }()
	events, err := c.evaluateTransaction(ctx, &ptx)
	if err != nil {
		return types.ProcessedTransaction{}, nil, err
	}
	return ptx, events, nil
}

// ClearPending discards the pending pool and returns its transactions,
// including those set aside by block operations, in the order they were
// pushed.
func (c *Chain) ClearPending() []types.SignedTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stashPending()
	out := make([]types.SignedTransaction, len(c.stashed))
	for i := range c.stashed {
		out[i] = c.stashed[i].Signed
	}
	c.stashed = nil
	return out
}

// PendingTransactions returns the transactions applied to the pending
// pool.
func (c *Chain) PendingTransactions() []types.ProcessedTransaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ProcessedTransaction(nil), c.pendingTxs...)
}

// IsKnown reports whether a transaction with id was applied and has not
// yet expired.
func (c *Chain) IsKnown(id types.TransactionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isKnown(id)
}

func (c *Chain) isKnown(id types.TransactionID) bool {
	_, ok := c.store.Lookup(IndexTransactionID, hex.EncodeToString(id[:]))
	return ok
}

// stashPending undoes the pending session, keeping its transactions for
// ClearPending.
func (c *Chain) stashPending() {
	if c.pending == nil {
		return
	}
	c.pending.Undo()
	c.pending = nil
	c.stashed = append(c.stashed, c.pendingTxs...)
	c.pendingTxs = nil
}

// applyTransaction applies ptx in a session of its own, merged into the
// enclosing one on success.
func (c *Chain) applyTransaction(ctx context.Context, ptx *types.ProcessedTransaction) (events []types.Event, err error) {
	start := c.opIndex
	err = store.WithSession(c.store, func(ss *store.Session) error {
		var err error
		events, err = c.evaluateTransaction(ctx, ptx)
		if err != nil {
			return err
		}
		return ss.Merge()
	})
	if err != nil {
		c.opIndex = start
		if id, idErr := ptx.ID(); idErr == nil {
			c.logger.Debug().Err(err).Str("trx_id", id.String()).Stringer("mode", c.cfg.Mode).Msg("Transaction rejected")
		}
	}
	return events, err
}

// evaluateTransaction runs the checks of a transaction and its
// operations against the current session. In replay ptx keeps the
// results recorded by its producer; otherwise they are set from the run.
func (c *Chain) evaluateTransaction(ctx context.Context, ptx *types.ProcessedTransaction) ([]types.Event, error) {
	trx := &ptx.Signed.Transaction
	p := store.Parameters(c.store)
	dgp := store.DynamicGlobals(c.store)
	now := dgp.Time

	size, err := types.PackSize(&ptx.Signed)
	if err != nil {
		return nil, errors.BadRequest.Wrap(err)
	}
	if limit := uint64(p.MaximumBlockSize / 50); size >= limit {
		return nil, errors.BadRequest.WithFormat("transaction is %d bytes, limit %d", size, limit)
	}
	if err := trx.Validate(); err != nil {
		return nil, errors.BadRequest.WithFormat("invalid transaction: %w", err)
	}
	ops, _ := trx.Decoded()
	id, err := trx.ID()
	if err != nil {
		return nil, errors.BadRequest.Wrap(err)
	}
	if !c.cfg.Skip.Has(types.SkipTransactionDupeCheck) && c.isKnown(id) {
		return nil, errors.Duplicate.WithFormat("transaction %v already applied", id)
	}

	var (
		keys    []types.PublicKey
		crontab *types.CrontabObject
		events  []types.Event
	)
	if task := trx.AgreedTask; task != nil {
		crontab, events, err = c.startAgreedTask(trx, task, now)
		if err != nil {
			return nil, err
		}
	} else {
		if keys, err = c.checkAuthority(ptx, ops); err != nil {
			return nil, err
		}
		if dgp.HeadBlockNumber > 0 {
			if err := c.checkTapos(trx); err != nil {
				return nil, err
			}
			if latest := now.Add(int64(p.MaximumTimeUntilExpiration)); trx.Expiration > latest {
				return nil, errors.Expired.WithFormat("transaction expires at %v, after %v", trx.Expiration, latest)
			}
			if trx.Expiration < now {
				return nil, errors.Expired.WithFormat("transaction expired at %v, head time %v", trx.Expiration, now)
			}
		}
	}
	if !c.cfg.Skip.Has(types.SkipTransactionDupeCheck) {
		if _, err := store.Create(c.store, &types.TransactionObject{TrxID: id, Expiration: trx.Expiration}); err != nil {
			return nil, err
		}
	}

	recorded := ptx.OperationResults
	results := make([]types.OperationResult, 0, len(ops))
	budget := sandbox.BlockBudget(p)
	var runTime uint64
	var failed bool
	for i, op := range ops {
		ec := &evaluator.ExecutionContext{Config: &c.cfg, Keys: keys, Trx: ptx, OpIndex: i, AgreedTask: trx.AgreedTask}
		res, err := c.dispatcher.Apply(ctx, ec, op, true)
		if err != nil {
			if trx.AgreedTask == nil {
				return nil, errors.Code(err).WithFormat("operation %d (%v): %w", i, op.Type(), err)
			}
			res = types.FailedResult(uint64(errors.Code(err)), err.Error())
		}
		if c.cfg.Mode == types.ModeReplay && trx.AgreedTask != nil {
			if i >= len(recorded) || !sameOutcome(recorded[i], res) {
				return nil, errors.Consistency.WithFormat("operation %d of scheduled transaction diverged from its recorded result", i)
			}
		}
		runTime += res.RealRunningTime
		if c.cfg.Mode != types.ModeReplay && time.Duration(runTime)*time.Microsecond >= budget {
			return nil, errors.Timeout.WithFormat("transaction ran %dµs, budget %v", runTime, budget)
		}
		failed = failed || res.IsError()
		results = append(results, res)
		events = append(events, types.OperationEvent(int(c.opIndex), op.Type(), op.FeePayer(), res))
		c.opIndex++
	}
	if c.cfg.Mode != types.ModeReplay {
		ptx.OperationResults = results
	}

	if crontab != nil {
		ev, err := c.finishCrontab(crontab, failed, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev...)
	}
	return events, nil
}

// sameOutcome compares a recomputed result with the recorded one by kind
// and, for failures, status code.
func sameOutcome(recorded, got types.OperationResult) bool {
	if recorded.Kind != got.Kind {
		return false
	}
	if got.IsError() {
		return recorded.Error != nil && got.Error != nil && recorded.Error.Code == got.Error.Code
	}
	return true
}

type accountLookup struct{ s *store.Store }

func (l accountLookup) Account(id types.AccountID) (*types.AccountObject, error) {
	return store.Load[*types.AccountObject](l.s, id.ObjectID())
}

// checkAuthority recovers the signing keys of ptx and checks them
// against the authorities its operations require.
func (c *Chain) checkAuthority(ptx *types.ProcessedTransaction, ops []types.Operation) ([]types.PublicKey, error) {
	if c.verifier == nil || c.cfg.Skip.Has(types.SkipTransactionSignatures) {
		return nil, nil
	}
	keys, err := c.verifier.SignatureKeys(c.chainID, &ptx.Signed)
	if err != nil {
		return nil, errors.Unauthorized.WithFormat("recover signing keys: %w", err)
	}
	ok, err := c.verifier.Satisfied(keys, evaluator.RequiredAuthorities(ops...), accountLookup{c.store})
	if err != nil {
		return nil, errors.Unauthorized.WithFormat("check authorities: %w", err)
	}
	if !ok {
		return nil, errors.Unauthorized.With("signatures do not satisfy the required authorities")
	}
	return keys, nil
}

// checkTapos checks that the transaction references a recent block of
// this chain.
func (c *Chain) checkTapos(trx *types.Transaction) error {
	if c.cfg.Skip.Has(types.SkipTaposCheck) {
		return nil
	}
	sum, ok := store.Find[*types.BlockSummaryObject](c.store, types.NewObjectID(types.BlockSummaryKind, uint64(trx.RefBlockNum)))
	if !ok || binary.LittleEndian.Uint32(sum.BlockID[4:8]) != trx.RefBlockPrefix {
		return errors.Precondition.WithFormat("reference block %d/%08x is not on this chain", trx.RefBlockNum, trx.RefBlockPrefix)
	}
	return nil
}

// TaskHash returns the digest identifying the scheduled content of trx.
func TaskHash(trx types.Transaction) (types.Hash, error) {
	trx.AgreedTask = nil
	return types.Digest(&trx)
}

// startAgreedTask checks that a reinjected transaction matches the
// proposal or crontab it claims to come from and marks the entry as run.
func (c *Chain) startAgreedTask(trx *types.Transaction, task *types.AgreedTask, now types.TimePoint) (*types.CrontabObject, []types.Event, error) {
	hash, err := TaskHash(*trx)
	if err != nil {
		return nil, nil, errors.BadRequest.Wrap(err)
	}
	if hash != task.TrxHash {
		return nil, nil, errors.BadRequest.WithFormat("scheduled transaction hash %v does not match its content", task.TrxHash)
	}

	switch task.ScheduleID.Kind() {
	case types.ProposalKind:
		prop, err := store.Load[*types.ProposalObject](c.store, task.ScheduleID)
		if err != nil {
			return nil, nil, err
		}
		want, err := types.Digest(&prop.ProposedTransaction)
		if err != nil {
			return nil, nil, errors.Internal.Wrap(err)
		}
		switch {
		case want != hash:
			return nil, nil, errors.Precondition.WithFormat("transaction is not the one proposed by %v", prop.ID)
		case !prop.AllowExecution:
			return nil, nil, errors.Precondition.WithFormat("proposal %v is not approved for execution", prop.ID)
		case prop.ExpirationTime > now:
			return nil, nil, errors.Precondition.WithFormat("proposal %v executes at %v", prop.ID, prop.ExpirationTime)
		}
		if err := store.Modify(c.store, prop, func(p *types.ProposalObject) { p.AllowExecution = false }); err != nil {
			return nil, nil, err
		}
		ev := types.Event{Kind: types.EventProposalExec, Attributes: []types.EventAttribute{
			{Key: "proposal", Value: prop.ID.String(), Index: true},
		}}
		return nil, []types.Event{ev}, nil

	case types.CrontabKind:
		cron, err := store.Load[*types.CrontabObject](c.store, task.ScheduleID)
		if err != nil {
			return nil, nil, err
		}
		want, err := types.Digest(&cron.TimedTransaction)
		if err != nil {
			return nil, nil, errors.Internal.Wrap(err)
		}
		switch {
		case want != hash:
			return nil, nil, errors.Precondition.WithFormat("transaction is not the one scheduled by %v", cron.ID)
		case cron.IsSuspended:
			return nil, nil, errors.Precondition.WithFormat("crontab %v is suspended", cron.ID)
		case cron.NextExecuteTime > now:
			return nil, nil, errors.Precondition.WithFormat("crontab %v next runs at %v", cron.ID, cron.NextExecuteTime)
		}
		ops, err := trx.Decoded()
		if err != nil {
			return nil, nil, errors.BadRequest.Wrap(err)
		}
		authorized, err := evaluator.OwnerAuthorizes(c.store, cron.TaskOwner, ops)
		if err != nil {
			return nil, nil, err
		}
		if !authorized {
			return nil, nil, errors.Unauthorized.WithFormat("crontab %v is no longer authorized by %v", cron.ID, cron.TaskOwner)
		}
		lifetime := evaluator.TaskLifetime(store.Parameters(c.store))
		err = store.Modify(c.store, cron, func(t *types.CrontabObject) {
			interval := int64(t.ExecuteInterval)
			t.NextExecuteTime = now.Add(interval)
			t.ExpirationTime = now.Add(int64(t.Remaining()) * interval)
			t.AlreadyExecuteTimes++
			t.TimedTransaction.Expiration = t.NextExecuteTime.Add(lifetime)
		})
		if err != nil {
			return nil, nil, err
		}
		return cron, nil, nil
	}
	return nil, nil, errors.BadRequest.WithFormat("%v cannot schedule transactions", task.ScheduleID)
}

// finishCrontab records the outcome of one crontab execution: failures
// are counted towards suspension and an entry that has run its course is
// removed.
func (c *Chain) finishCrontab(cron *types.CrontabObject, failed bool, now types.TimePoint) ([]types.Event, error) {
	p := store.Parameters(c.store)
	if cron.Remaining() == 0 {
		if err := store.Remove(c.store, cron.ID); err != nil {
			return nil, err
		}
		return []types.Event{crontabEvent(cron, "completed")}, nil
	}
	if !failed {
		if cron.ContinuousFailureTimes == 0 {
			return nil, nil
		}
		return nil, store.Modify(c.store, cron, func(t *types.CrontabObject) { t.ContinuousFailureTimes = 0 })
	}
	var suspended bool
	err := store.Modify(c.store, cron, func(t *types.CrontabObject) {
		t.ContinuousFailureTimes++
		if t.ContinuousFailureTimes == uint64(p.CrontabSuspendThreshold) {
			t.IsSuspended = true
			t.NextExecuteTime = types.MaxTimePoint
			t.ExpirationTime = now.Add(int64(p.CrontabSuspendExpiration))
			suspended = true
		}
	})
	if err != nil || !suspended {
		return nil, err
	}
	c.logger.Info().Stringer("crontab", cron.ID).Uint64("failures", cron.ContinuousFailureTimes).Msg("Crontab suspended")
	return []types.Event{crontabEvent(cron, "suspended")}, nil
}

func crontabEvent(cron *types.CrontabObject, state string) types.Event {
	return types.Event{Kind: types.EventCrontabState, Attributes: []types.EventAttribute{
		{Key: "crontab", Value: cron.ID.String(), Index: true},
		{Key: "owner", Value: cron.TaskOwner.String(), Index: true},
		{Key: "state", Value: state},
		{Key: "executions", Value: strconv.FormatUint(cron.AlreadyExecuteTimes, 10)},
	}}
}
