package backendworker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/framewright/corpus/pkg/broker"
	"github.com/framewright/corpus/pkg/config"
)

// Worker polls the jobs queue and dispatches each job to a JobHandler.
// Ported from the teacher's Worker.run/pollAndProcess: poll-or-sleep loop,
// per-job context with timeout, cancel registration, health tracking.
type Worker struct {
	id      string
	cfg     *config.WorkerConfig
	handler JobHandler
	b       broker.Broker
	queue   string
	pool    JobRegistry

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

func newWorker(id string, cfg *config.WorkerConfig, handler JobHandler, pool JobRegistry, b broker.Broker, queue string) *Worker {
	return &Worker{
		id:           id,
		cfg:          cfg,
		handler:      handler,
		pool:         pool,
		b:            b,
		queue:        queue,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

func (w *Worker) start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Worker) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("backend worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("backend worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, backend worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) pollAndProcess(ctx context.Context) error {
	pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	job, err := w.b.Pop(pollCtx, w.queue)
	if err != nil {
		if errors.Is(err, broker.ErrNotFound) {
			return ErrNoJobsAvailable
		}
		return err
	}

	log := slog.With("task_id", job.TaskID, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.TaskID)
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, jobCancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer jobCancel()

	w.pool.RegisterJob(job.TaskID, jobCancel)
	defer w.pool.UnregisterJob(job.TaskID)

	if err := w.handler.Handle(jobCtx, job); err != nil {
		log.Error("job processing failed", "error", err)
		return err
	}

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()

	log.Info("job processing complete")
	return nil
}

func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jit := w.cfg.PollIntervalJitter
	if jit <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jit)))
	return base - jit + offset
}

func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
