package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
)

// Pool manages a set of concurrent worker goroutines that lease items
// from the queue and run them through the Executor. A reclaim goroutine
// periodically frees expired leases left behind by crashed workers.
type Pool struct {
	queue    *queue.Queue
	executor *Executor

	concurrency     int
	kinds           []queue.Kind
	pollInterval    time.Duration
	reclaimInterval time.Duration
	workerID        id.WorkerID
	logger          *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	active   map[string]context.CancelFunc
	activeMu sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolKinds sets the item kinds the pool will lease.
func WithPoolKinds(kinds ...queue.Kind) PoolOption {
	return func(p *Pool) { p.kinds = kinds }
}

// WithPollInterval sets how often idle workers poll for new items.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithReclaimInterval sets how often expired leases are reclaimed.
// A zero value disables the reclaim loop.
func WithReclaimInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.reclaimInterval = d }
}

// NewPool creates a worker pool.
func NewPool(q *queue.Queue, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:           q,
		executor:        executor,
		concurrency:     4,
		kinds:           []queue.Kind{queue.KindTailor, queue.KindParse},
		pollInterval:    time.Second,
		reclaimInterval: 30 * time.Second,
		workerID:        id.NewWorkerID(),
		logger:          logger,
		stopCh:          make(chan struct{}),
		active:          make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop()
	}

	if p.reclaimInterval > 0 {
		p.wg.Add(1)
		go p.reclaimLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish. If the
// context has a deadline, in-flight items are cancelled when time runs
// out; their leases expire and another worker picks them up.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling in-flight items")
		p.cancelActive()
		p.wg.Wait()
	}

	return nil
}

// dequeueLoop is run by each worker goroutine.
func (p *Pool) dequeueLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		item, err := p.queue.Dequeue(context.Background(), p.kinds, p.workerID)
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}

		if item == nil {
			p.sleep()
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		p.track(item.ID.String(), cancel)

		if procErr := p.executor.Process(ctx, item); procErr != nil {
			p.logger.Error("item processing error",
				slog.String("item_id", item.ID.String()),
				slog.String("job_id", item.JobID.String()),
				slog.String("error", procErr.Error()),
			)
		}

		p.untrack(item.ID.String())
		cancel()
	}
}

// reclaimLoop periodically frees leases that expired without an ack.
func (p *Pool) reclaimLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.queue.Reclaim(context.Background())
			if err != nil {
				p.logger.Error("lease reclaim error", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				p.logger.Info("reclaimed expired leases", slog.Int("count", n))
			}
		}
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) track(itemID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.active[itemID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrack(itemID string) {
	p.activeMu.Lock()
	delete(p.active, itemID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActive() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for itemID, cancel := range p.active {
		p.logger.Warn("cancelling in-flight item", slog.String("item_id", itemID))
		cancel()
	}
}
