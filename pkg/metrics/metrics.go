// Package metrics provides Prometheus metrics collection for the task-
// orchestration and artifact-provenance subsystem. Grounded on
// r3e-network-service_layer's infrastructure/metrics package: a single
// struct of pre-registered collectors, a constructor taking a
// prometheus.Registerer, and small Record*/Set* helper methods per concern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector this subsystem exposes.
type Metrics struct {
	TasksCreatedTotal    *prometheus.CounterVec
	TaskTransitionsTotal *prometheus.CounterVec
	TaskDuration         *prometheus.HistogramVec

	JobsEnqueuedTotal *prometheus.CounterVec
	JobsDedupedTotal  *prometheus.CounterVec

	ArtifactsCreatedTotal *prometheus.CounterVec
	ArtifactWriteDuration *prometheus.HistogramVec

	ReconcilerPassesTotal   prometheus.Counter
	ReconcilerPendingResync *prometheus.CounterVec
	ReconcilerRunningResync *prometheus.CounterVec
	ReconcilerLongRunning   prometheus.Gauge

	ThumbnailsGeneratedTotal *prometheus.CounterVec

	WorkerPoolActiveJobs *prometheus.GaugeVec
	WorkerPoolWorkers    *prometheus.GaugeVec
}

// New creates a Metrics instance with every collector registered against
// registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "tasks_created_total", Help: "Total tasks created, by kind."},
			[]string{"kind"},
		),
		TaskTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "task_transitions_total", Help: "Total task status transitions, by kind and new status."},
			[]string{"kind", "status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "task_duration_seconds",
				Help:    "Time from a task's started_at to its terminal transition, by kind.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"kind"},
		),
		JobsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "jobs_enqueued_total", Help: "Total jobs enqueued, by queue."},
			[]string{"queue"},
		),
		JobsDedupedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "jobs_deduped_total", Help: "Total enqueue calls that were no-ops due to an existing job id, by queue."},
			[]string{"queue"},
		),
		ArtifactsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "artifacts_created_total", Help: "Total artifact envelopes created, by kind."},
			[]string{"kind"},
		),
		ArtifactWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "artifact_write_duration_seconds",
				Help:    "Envelope insert + projection sync transaction duration, by kind.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"kind"},
		),
		ReconcilerPassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "reconciler_passes_total", Help: "Total reconciler passes run."},
		),
		ReconcilerPendingResync: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reconciler_pending_resync_total", Help: "Total pending tasks re-enqueued by the reconciler."},
			[]string{"kind"},
		),
		ReconcilerRunningResync: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "reconciler_running_resync_total", Help: "Total running-task corrections, by outcome (reset, completed, failed)."},
			[]string{"outcome"},
		),
		ReconcilerLongRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "reconciler_long_running_tasks", Help: "Running tasks older than the long-running threshold, as of the last pass."},
		),
		ThumbnailsGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "thumbnails_generated_total", Help: "Total thumbnail frames extracted, by outcome (generated, skipped, failed)."},
			[]string{"outcome"},
		),
		WorkerPoolActiveJobs: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "worker_pool_active_jobs", Help: "Active jobs per worker pool."},
			[]string{"pool"},
		),
		WorkerPoolWorkers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "worker_pool_workers", Help: "Configured worker count per pool."},
			[]string{"pool"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.TasksCreatedTotal, m.TaskTransitionsTotal, m.TaskDuration,
			m.JobsEnqueuedTotal, m.JobsDedupedTotal,
			m.ArtifactsCreatedTotal, m.ArtifactWriteDuration,
			m.ReconcilerPassesTotal, m.ReconcilerPendingResync, m.ReconcilerRunningResync, m.ReconcilerLongRunning,
			m.ThumbnailsGeneratedTotal,
			m.WorkerPoolActiveJobs, m.WorkerPoolWorkers,
		)
	}

	return m
}

// RecordTaskCreated increments the per-kind task creation counter.
func (m *Metrics) RecordTaskCreated(kind string) {
	m.TasksCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordTaskTransition increments the per-(kind, status) transition counter
// and, for terminal statuses, observes the task's runtime.
func (m *Metrics) RecordTaskTransition(kind, status string, runtime time.Duration) {
	m.TaskTransitionsTotal.WithLabelValues(kind, status).Inc()
	if runtime > 0 {
		m.TaskDuration.WithLabelValues(kind).Observe(runtime.Seconds())
	}
}

// RecordJobEnqueued records one enqueue call's outcome for queue.
func (m *Metrics) RecordJobEnqueued(queue string, deduped bool) {
	m.JobsEnqueuedTotal.WithLabelValues(queue).Inc()
	if deduped {
		m.JobsDedupedTotal.WithLabelValues(queue).Inc()
	}
}

// RecordArtifactCreated records one envelope's creation and the write
// transaction's duration.
func (m *Metrics) RecordArtifactCreated(kind string, duration time.Duration) {
	m.ArtifactsCreatedTotal.WithLabelValues(kind).Inc()
	m.ArtifactWriteDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordReconcilerPass records one completed pass, its pending-resync
// count by kind, and the running-sync outcome tallies.
func (m *Metrics) RecordReconcilerPass(pendingByKind map[string]int, reset, completed, failed, longRunning int) {
	m.ReconcilerPassesTotal.Inc()
	for kind, n := range pendingByKind {
		m.ReconcilerPendingResync.WithLabelValues(kind).Add(float64(n))
	}
	m.ReconcilerRunningResync.WithLabelValues("reset").Add(float64(reset))
	m.ReconcilerRunningResync.WithLabelValues("completed").Add(float64(completed))
	m.ReconcilerRunningResync.WithLabelValues("failed").Add(float64(failed))
	m.ReconcilerLongRunning.Set(float64(longRunning))
}

// RecordThumbnail records one per-timestamp extraction outcome.
func (m *Metrics) RecordThumbnail(outcome string) {
	m.ThumbnailsGeneratedTotal.WithLabelValues(outcome).Inc()
}

// SetWorkerPoolHealth records a pool's active job count and configured
// worker count.
func (m *Metrics) SetWorkerPoolHealth(pool string, activeJobs, workers int) {
	m.WorkerPoolActiveJobs.WithLabelValues(pool).Set(float64(activeJobs))
	m.WorkerPoolWorkers.WithLabelValues(pool).Set(float64(workers))
}
