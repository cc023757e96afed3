// Package sandbox bounds the wall time of operation evaluation.
//
// While a block is being authored, and during dry runs, each operation
// runs on a worker goroutine that the supervisor polls. A worker that
// overruns its budget is cancelled and joined before the supervisor
// returns, so nothing it does can outlive the call. Blocks produced
// elsewhere are replayed inline without a budget; their timing decisions
// are already recorded.
//
// The join relies on cooperation: a Func must poll its context and
// return once it is cancelled. Script engines and other evaluators that
// loop must check ctx.Err() between steps, or a timeout blocks the
// supervisor for as long as they keep running.
package sandbox

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// DefaultPollInterval is how often the supervisor checks its worker.
const DefaultPollInterval = 100 * time.Microsecond

// MaxRunTimePercent caps the per-operation share of the block interval.
const MaxRunTimePercent = 50

// Budget returns the run time allowed to one operation while authoring:
// the block interval, times the run time ratio in whole percent capped
// at MaxRunTimePercent, times the timeout magnification, in
// microseconds.
func Budget(p *types.ChainParameters) time.Duration {
	ratio := min(int64(p.MaximumRunTimeRatio)/types.Percent1, MaxRunTimePercent)
	us := int64(p.BlockInterval) * ratio * int64(p.TimeoutMagnification)
	return time.Duration(us) * time.Microsecond
}

// BlockBudget returns the total authoring run time the transactions of
// one block may use.
func BlockBudget(p *types.ChainParameters) time.Duration {
	interval := time.Duration(p.BlockInterval) * time.Second
	return interval * time.Duration(p.MaximumTransactionRunTimeRatio) / time.Duration(types.Percent100)
}

// Func is the unit of work the supervisor runs. It must return promptly
// once ctx is cancelled.
type Func func(ctx context.Context) (types.OperationResult, error)

type Options struct {
	Logger       zerolog.Logger
	PollInterval time.Duration
}

// Supervisor runs operations under a run time budget.
type Supervisor struct {
	logger zerolog.Logger
	poll   time.Duration
}

func New(opts Options) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Supervisor{logger: opts.Logger, poll: opts.PollInterval}
}

// Run executes fn. In a timed mode fn runs on a worker bounded by budget
// and, unless fn already recorded one, the measured running time is set
// on the result in microseconds. In replay fn runs inline and its
// recorded running time is left as fn set it. A panic in fn is returned
// as an Internal error.
func (s *Supervisor) Run(ctx context.Context, mode types.RunMode, budget time.Duration, fn Func) (types.OperationResult, error) {
	if !mode.Timed() {
		start := time.Now()
		res, err := s.protect(ctx, fn).Get()
		runTime.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
		return res, err
	}
	return s.supervise(ctx, mode, budget, fn)
}

func (s *Supervisor) supervise(ctx context.Context, mode types.RunMode, budget time.Duration, fn Func) (types.OperationResult, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Result[types.OperationResult], 1)
	start := time.Now()
	go func() { done <- s.protect(wctx, fn) }()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			elapsed := time.Since(start)
			runTime.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
			res, err := r.Get()
			if err != nil {
				return res, err
			}
			if elapsed > budget {
				return s.timedOut(elapsed, budget)
			}
			if res.RealRunningTime == 0 {
				res.RealRunningTime = uint64(max(elapsed.Microseconds(), 1))
			}
			return res, nil

		case <-ticker.C:
			if time.Since(start) <= budget {
				continue
			}
			// fn must honor wctx; the join waits for it.
			cancel()
			<-done
			return s.timedOut(time.Since(start), budget)

		case <-ctx.Done():
			cancel()
			<-done
			return types.OperationResult{}, errors.Timeout.WithFormat("evaluation cancelled: %w", ctx.Err())
		}
	}
}

func (s *Supervisor) timedOut(elapsed, budget time.Duration) (types.OperationResult, error) {
	timeouts.Inc()
	s.logger.Debug().Dur("elapsed", elapsed).Dur("budget", budget).Msg("Operation timed out")
	return types.OperationResult{}, errors.Timeout.WithFormat("operation ran %v, budget %v", elapsed.Round(time.Microsecond), budget)
}

// protect runs fn, converting a panic into an Internal error.
func (s *Supervisor) protect(ctx context.Context, fn Func) (r Result[types.OperationResult]) {
	defer func() {
		if p := recover(); p != nil {
			panics.Inc()
			s.logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("Evaluation panicked")
			r = Err[types.OperationResult](errors.Internal.WithFormat("evaluation panicked: %v", p))
		}
	}()
	res, err := fn(ctx)
	if err != nil {
		return Err[types.OperationResult](err)
	}
	return Ok(res)
}
