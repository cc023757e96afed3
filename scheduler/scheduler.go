// Package scheduler refills the pending pool after a block switch.
//
// When the chain moves to another head, the transactions that were
// pending, together with those of any popped block, are submitted again
// in their original order. Afterwards every approved proposal whose
// review has elapsed and every crontab entry that is due is turned into
// a transaction tagged with the entry it came from and submitted the
// same way.
package scheduler

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger/chain"
	"github.com/blockberries/ledger/evaluator"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

type Options struct {
	Logger zerolog.Logger
}

type Scheduler struct {
	chain  *chain.Chain
	logger zerolog.Logger
}

func New(c *chain.Chain, opts Options) *Scheduler {
	return &Scheduler{chain: c, logger: opts.Logger}
}

// Report counts what one Restore cycle did.
type Report struct {
	Restored   int
	Dropped    int
	Reinjected int
	Skipped    int
}

// Task is a transaction synthesized for a due schedule entry.
type Task struct {
	ScheduleID types.ObjectID
	Tx         types.SignedTransaction
}

// Restore resubmits popped and pending, then submits a transaction for
// every due schedule entry. A transaction that no longer applies is
// dropped; an entry whose transaction fails is skipped until the next
// cycle.
func (s *Scheduler) Restore(ctx context.Context, popped []types.ProcessedTransaction, pending []types.SignedTransaction) Report {
	var r Report
	for i := range popped {
		if ctx.Err() != nil {
			return r
		}
		s.resubmit(ctx, popped[i].Signed, &r)
	}
	for i := range pending {
		if ctx.Err() != nil {
			return r
		}
		s.resubmit(ctx, pending[i], &r)
	}

	for _, t := range s.Due() {
		if ctx.Err() != nil {
			return r
		}
		kind := kindLabel(t.ScheduleID)
		if _, err := s.chain.PushTransaction(ctx, t.Tx); err != nil {
			r.Skipped++
			reinjected.WithLabelValues(kind, "skipped").Inc()
			s.logger.Warn().Err(err).Stringer("schedule_id", t.ScheduleID).Msg("Scheduled transaction skipped")
			continue
		}
		r.Reinjected++
		reinjected.WithLabelValues(kind, "submitted").Inc()
	}
	if r != (Report{}) {
		s.logger.Debug().
			Int("restored", r.Restored).
			Int("dropped", r.Dropped).
			Int("reinjected", r.Reinjected).
			Int("skipped", r.Skipped).
			Msg("Pending pool restored")
	}
	return r
}

func (s *Scheduler) resubmit(ctx context.Context, tx types.SignedTransaction, r *Report) {
	id, err := tx.ID()
	if err != nil {
		r.Dropped++
		restored.WithLabelValues("invalid").Inc()
		return
	}
	if s.chain.IsKnown(id) {
		r.Dropped++
		restored.WithLabelValues("known").Inc()
		return
	}
	if _, err := s.chain.PushTransaction(ctx, tx); err != nil {
		r.Dropped++
		restored.WithLabelValues("rejected").Inc()
		s.logger.Debug().Err(err).Str("trx_id", id.String()).Msg("Pending transaction dropped")
		return
	}
	r.Restored++
	restored.WithLabelValues("applied").Inc()
}

// Due returns a transaction for every proposal and crontab entry that
// may run at the head time and has not already been applied. Proposals
// come first in id order, then crontab entries by next execution time.
func (s *Scheduler) Due() []Task {
	var tasks []Task
	s.chain.View(func(st *store.Store) {
		head := store.HeadTime(st)
		for _, prop := range store.All[*types.ProposalObject](st, types.ProposalKind) {
			if !prop.AllowExecution || prop.ExpirationTime > head {
				continue
			}
			if t, ok := s.synthesize(prop.ID, prop.ProposedTransaction); ok {
				tasks = append(tasks, t)
			}
		}

		crons := store.All[*types.CrontabObject](st, types.CrontabKind)
		sort.SliceStable(crons, func(i, j int) bool { return crons[i].NextExecuteTime < crons[j].NextExecuteTime })
		for _, cron := range crons {
			if cron.IsSuspended || cron.NextExecuteTime > head || cron.Remaining() == 0 {
				continue
			}
			if !s.authorized(st, cron) {
				continue
			}
			if t, ok := s.synthesize(cron.ID, cron.TimedTransaction); ok {
				tasks = append(tasks, t)
			}
		}
	})

	out := tasks[:0]
	for _, t := range tasks {
		id, err := t.Tx.ID()
		if err != nil {
			s.logger.Warn().Err(err).Stringer("schedule_id", t.ScheduleID).Msg("Cannot identify scheduled transaction")
			continue
		}
		if s.chain.IsKnown(id) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// authorized reports whether the owner of cron can still approve every
// operation it schedules.
func (s *Scheduler) authorized(st *store.Store, cron *types.CrontabObject) bool {
	ops, err := cron.TimedTransaction.Decoded()
	if err == nil {
		var ok bool
		ok, err = evaluator.OwnerAuthorizes(st, cron.TaskOwner, ops)
		if ok {
			return true
		}
	}
	log := s.logger.Debug()
	if err != nil {
		log = s.logger.Warn().Err(err)
	}
	log.Stringer("crontab", cron.ID).Stringer("owner", cron.TaskOwner).Msg("Crontab not authorized, skipping")
	reinjected.WithLabelValues("crontab", "unauthorized").Inc()
	return false
}

func (s *Scheduler) synthesize(id types.ObjectID, trx types.Transaction) (Task, bool) {
	hash, err := chain.TaskHash(trx)
	if err != nil {
		s.logger.Warn().Err(err).Stringer("schedule_id", id).Msg("Cannot synthesize scheduled transaction")
		return Task{}, false
	}
	trx.AgreedTask = &types.AgreedTask{TrxHash: hash, ScheduleID: id}
	return Task{ScheduleID: id, Tx: types.SignedTransaction{Transaction: trx}}, true
}

func kindLabel(id types.ObjectID) string {
	switch id.Kind() {
	case types.ProposalKind:
		return "proposal"
	case types.CrontabKind:
		return "crontab"
	default:
		return "other"
	}
}
