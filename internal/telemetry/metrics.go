package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестрации. Экспортируются на /metrics endpoint.
var (
	// TasksStarted — количество задач, взятых в оркестрацию.
	TasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_tasks_started_total",
		Help: "Number of edit tasks picked up for orchestration.",
	})

	// TasksSucceeded — количество задач, завершившихся успехом.
	TasksSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_tasks_succeeded_total",
		Help: "Number of edit tasks finished with a passing candidate.",
	})

	// TasksEscalated — количество задач, ушедших на ручное ревью.
	TasksEscalated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_tasks_escalated_total",
		Help: "Number of edit tasks handed off to human review.",
	})

	// DuplicateRejected — количество отклонённых дубликатов
	// (задача уже заблокирована другим запуском).
	DuplicateRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_duplicate_rejected_total",
		Help: "Number of acquire attempts rejected because the task is already locked.",
	})

	// Iterations — количество выполненных итераций enhance→generate→validate.
	Iterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_iterations_total",
		Help: "Number of enhance/generate/validate iterations executed.",
	})

	// SequentialRuns — количество запусков пошагового режима.
	SequentialRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_sequential_runs_total",
		Help: "Number of sequential (decomposed) mode executions.",
	})

	// FanoutCalls — вызовы моделей по фазам и исходам.
	FanoutCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retoucher_fanout_calls_total",
		Help: "Model calls per phase and outcome.",
	}, []string{"phase", "outcome"})

	// PhaseDuration — длительность фаз fanout.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retoucher_phase_duration_seconds",
		Help:    "Wall-clock duration of a fanout phase.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"phase"})

	// LocksSwept — количество блокировок, убранных sweep'ом.
	LocksSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retoucher_locks_swept_total",
		Help: "Number of expired task locks removed by the sweeper.",
	})
)

// ObservePhase записывает длительность фазы.
func ObservePhase(phase string, start time.Time) {
	PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
