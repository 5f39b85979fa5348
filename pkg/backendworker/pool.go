package backendworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/config"
)

// Pool manages a fixed set of backend workers. Ported from the teacher's
// WorkerPool: Start/Stop lifecycle, a cancel registry keyed by task id
// instead of session id, and per-worker health reporting.
type Pool struct {
	name    string
	cfg     *config.WorkerConfig
	handler JobHandler
	b       broker.Broker
	queue   string
	workers []*Worker
	stopCh  chan struct{}
	stopOnce sync.Once
	wg      sync.WaitGroup

	activeJobs map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool
}

// NewPool creates a backend worker pool named name (used as a log/health
// label, analogous to the teacher's pod_id), consuming from queue on b.
func NewPool(name string, cfg *config.WorkerConfig, handler JobHandler, b broker.Broker, queue string) *Pool {
	return &Pool{
		name:       name,
		cfg:        cfg,
		handler:    handler,
		b:          b,
		queue:      queue,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		stopCh:     make(chan struct{}),
		activeJobs: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines. Safe to call multiple times; subsequent
// calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pool", p.name)
		return
	}
	p.started = true

	slog.Info("starting worker pool", "pool", p.name, "worker_count", p.cfg.WorkerCount)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.name, i)
		w := newWorker(workerID, p.cfg, p.handler, p, p.b, p.queue)
		p.workers = append(p.workers, w)
		w.start(ctx)
	}
}

// Stop signals all workers to stop and waits for them to finish. Workers
// finish their current job before exiting (graceful shutdown).
func (p *Pool) Stop() {
	slog.Info("stopping worker pool gracefully", "pool", p.name)

	for _, w := range p.workers {
		w.stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped", "pool", p.name)
}

// RegisterJob stores a cancel function for manual/cooperative cancellation.
func (p *Pool) RegisterJob(taskID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeJobs[taskID] = cancel
}

// UnregisterJob removes the cancel function when processing ends.
func (p *Pool) UnregisterJob(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeJobs, taskID)
}

// CancelJob triggers context cancellation for taskID if it is running on
// this pool. Returns true if found.
func (p *Pool) CancelJob(taskID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeJobs[taskID]; ok {
		cancel()
		return true
	}
	return false
}

// Health reports the current pool health.
func (p *Pool) Health() PoolHealth {
	p.mu.RLock()
	activeJobs := len(p.activeJobs)
	p.mu.RUnlock()

	stats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, w := range p.workers {
		h := w.health()
		stats[i] = h
		if h.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	return PoolHealth{
		IsHealthy:     len(p.workers) > 0 && activeJobs <= p.cfg.MaxJobs,
		ActiveWorkers: activeWorkers,
		TotalWorkers:  len(p.workers),
		ActiveJobs:    activeJobs,
		MaxConcurrent: p.cfg.MaxJobs,
		WorkerStats:   stats,
	}
}
