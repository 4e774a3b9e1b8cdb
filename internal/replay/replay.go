// Package replay re-applies a recorded sequence of instructions against a
// fresh Dispatcher, the way an indexer rebuilds its view of chain state
// from a transaction log, or a test harness replays a fixture. Each market
// in a batch is independent, so replay fans the batch out across a bounded
// worker pool instead of walking markets one at a time.
package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/merl-labs/clob/internal/instruction"
	"github.com/merl-labs/clob/pkg/types"
)

// Entry is one recorded instruction to re-apply: the trader that signed
// it and the already-decoded batch-update parameters. Replay only covers
// opcode 6 (BatchUpdate) since that's the only opcode with match-engine
// side effects worth rebuilding; deposits/withdrawals/seat-claims are
// idempotent account-region writes a host can replay directly.
type Entry struct {
	Trader types.TraderKey
	Params types.BatchUpdateParams
}

// MarketJob pairs one market's dispatcher with the ordered log of
// instructions to replay against it.
type MarketJob struct {
	Market  string
	Dispatcher *instruction.Dispatcher
	Log     []Entry
}

// Result is one market's replay outcome.
type Result struct {
	Market string
	Applied int
	Err     error
}

// Runner replays batches of MarketJobs across a bounded ants pool sized to
// the host's concurrency budget, grounded on
// internal/architecture/fx/workerpool/worker_pool.go's pool-per-purpose
// factory: one pool, submit-and-wait per job, panics recorded rather than
// left to crash the runner.
type Runner struct {
	pool *ants.Pool
}

// NewRunner builds a Runner with a pool of the given size. size must be
// positive.
func NewRunner(size int) (*Runner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("replay: pool size must be positive, got %d", size)
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(rec interface{}) {
		// Recovered panics surface as a Result.Err on the owning job via
		// submitJob's own recover; this handler only guards against a
		// panic ants itself can't attribute to a job (pool internals).
	}))
	if err != nil {
		return nil, fmt.Errorf("replay: new pool: %w", err)
	}
	return &Runner{pool: pool}, nil
}

// Release tears down the underlying pool. Safe to call once replay is done.
func (r *Runner) Release() {
	r.pool.Release()
}

// Run replays every job concurrently (bounded by the pool size) and
// returns one Result per job, in the same order as jobs. ctx cancellation
// stops issuing new instructions to a job but does not abort one already
// in flight partway through its log.
func (r *Runner) Run(ctx context.Context, jobs []MarketJob) []Result {
	results := make([]Result, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))

	for i, job := range jobs {
		i, job := i, job
		err := r.pool.Submit(func() {
			defer wg.Done()
			results[i] = replayOne(ctx, job)
		})
		if err != nil {
			wg.Done()
			results[i] = Result{Market: job.Market, Err: fmt.Errorf("replay: submit: %w", err)}
		}
	}

	wg.Wait()
	return results
}

func replayOne(ctx context.Context, job MarketJob) (res Result) {
	res.Market = job.Market
	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("replay: market %s panicked: %v", job.Market, rec)
		}
	}()

	for _, entry := range job.Log {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		if _, err := job.Dispatcher.BatchUpdate(ctx, entry.Trader, entry.Params); err != nil {
			res.Err = fmt.Errorf("replay: market %s entry %d: %w", job.Market, res.Applied, err)
			return res
		}
		res.Applied++
	}
	return res
}
