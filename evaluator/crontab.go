package evaluator

import (
	"context"
	"math"
	"math/bits"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/fee"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

type crontabCreateEvaluator struct {
	d   *Dispatcher
	op  *types.CrontabCreateOperation
	end types.TimePoint
}

func (e *crontabCreateEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	op := e.op
	head := e.d.headTime()
	if op.StartTime <= head {
		return errors.Precondition.WithFormat("crontab start %v is not after the head time %v", op.StartTime, head)
	}
	end, err := crontabEnd(op.StartTime, op.ExecuteInterval, op.ScheduledExecuteTimes, head, e.d.params())
	if err != nil {
		return err
	}
	e.end = end
	if err := e.d.requireAccounts(append(op.ImpactedAccounts(), op.CrontabCreator)...); err != nil {
		return err
	}
	trx := types.Transaction{Operations: op.CrontabOps}
	ops, err := trx.Decoded()
	if err != nil {
		return errors.BadRequest.Wrap(err)
	}
	for i, inner := range ops {
		if inner.FeePayer() != op.CrontabCreator {
			return errors.Unauthorized.WithFormat("crontab op %d is paid by %v, not the creator %v", i, inner.FeePayer(), op.CrontabCreator)
		}
	}
	ok, err := OwnerAuthorizes(e.d.store, op.CrontabCreator, ops)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Unauthorized.WithFormat("crontab ops need authorities %v cannot approve", op.CrontabCreator)
	}
	return nil
}

// crontabEnd returns the time the last of times executions spaced by
// interval starting at start would run. The schedule must end within
// the maximum crontab lifetime after head.
func crontabEnd(start types.TimePoint, interval, times uint64, head types.TimePoint, p *types.ChainParameters) (types.TimePoint, error) {
	lifetime := uint64(p.MaximumCrontabLifetime)
	if interval > lifetime {
		return 0, errors.Precondition.WithFormat("crontab interval %d exceeds the maximum lifetime %d", interval, lifetime)
	}
	hi, span := bits.Mul64(interval, times)
	end, carry := bits.Add64(uint64(start), span, 0)
	if hi != 0 || carry != 0 || end > math.MaxInt64 {
		return 0, errors.Precondition.WithFormat("crontab of %d runs every %ds overflows", times, interval)
	}
	if limit := uint64(head) + lifetime; end > limit {
		return 0, errors.Precondition.WithFormat("crontab runs until %d, past the maximum lifetime ending at %d", end, limit)
	}
	return types.TimePoint(end), nil
}

func (e *crontabCreateEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	op := e.op
	cron, err := store.Create(e.d.store, &types.CrontabObject{
		TaskOwner: op.CrontabCreator,
		TimedTransaction: types.Transaction{
			Expiration: op.StartTime.Add(TaskLifetime(e.d.params())),
			Operations: op.CrontabOps,
		},
		StartTime:             op.StartTime,
		NextExecuteTime:       op.StartTime,
		ExecuteInterval:       op.ExecuteInterval,
		ScheduledExecuteTimes: op.ScheduledExecuteTimes,
		ExpirationTime:        e.end,
	})
	if err != nil {
		return types.OperationResult{}, err
	}
	return types.ObjectIDResult(cron.ID), nil
}

// loadOwnedCrontab returns the crontab id if owner owns it.
func (d *Dispatcher) loadOwnedCrontab(id types.CrontabID, owner types.AccountID) (*types.CrontabObject, error) {
	cron, err := store.Load[*types.CrontabObject](d.store, id.ObjectID())
	if err != nil {
		return nil, err
	}
	if cron.TaskOwner != owner {
		return nil, errors.Unauthorized.WithFormat("crontab %v is owned by %v", cron.ID, cron.TaskOwner)
	}
	return cron, nil
}

type crontabCancelEvaluator struct {
	d  *Dispatcher
	op *types.CrontabCancelOperation
}

func (e *crontabCancelEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	_, err := e.d.loadOwnedCrontab(e.op.Task, e.op.CrontabCreator)
	return err
}

func (e *crontabCancelEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	if err := store.Remove(e.d.store, e.op.Task.ObjectID()); err != nil {
		return types.OperationResult{}, err
	}
	return types.VoidResult(), nil
}

type crontabRecoverEvaluator struct {
	d    *Dispatcher
	op   *types.CrontabRecoverOperation
	cron *types.CrontabObject
}

func (e *crontabRecoverEvaluator) evaluate(context.Context, *ExecutionContext, *fee.Charge) error {
	if head := e.d.headTime(); e.op.RestartTime <= head {
		return errors.Precondition.WithFormat("restart time %v is not after the head time %v", e.op.RestartTime, head)
	}
	cron, err := e.d.loadOwnedCrontab(e.op.Crontab, e.op.CrontabOwner)
	if err != nil {
		return err
	}
	e.cron = cron
	return nil
}

func (e *crontabRecoverEvaluator) apply(context.Context, *ExecutionContext, *fee.Charge) (types.OperationResult, error) {
	restart := e.op.RestartTime
	lifetime := TaskLifetime(e.d.params())
	err := store.Modify(e.d.store, e.cron, func(c *types.CrontabObject) {
		c.IsSuspended = false
		c.ContinuousFailureTimes = 0
		c.NextExecuteTime = restart
		c.ExpirationTime = restart.Add(int64(c.ExecuteInterval * c.Remaining()))
		c.TimedTransaction.Expiration = restart.Add(lifetime)
	})
	return types.VoidResult(), err
}
