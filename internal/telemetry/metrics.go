// Package telemetry exposes prometheus metrics for the generation pipeline.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TasksEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_tasks_enqueued_total", Help: "Total tasks accepted by the queue"})
	TaskAttempts      = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_task_attempts_total", Help: "Total task delivery attempts"})
	TasksCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_tasks_completed_total", Help: "Tasks acknowledged after a successful delivery"})
	TasksFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_tasks_failed_total", Help: "Tasks that exhausted their delivery attempts"})
	TaskRetries       = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_task_retries_total", Help: "Redeliveries scheduled after a failed attempt"})
	TasksInFlight     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "generation_tasks_inflight", Help: "Tasks currently being processed"})
	QuotaDenials      = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_quota_denials_total", Help: "Submissions rejected by the usage gate"})
	ProgressPublishes = prometheus.NewCounter(prometheus.CounterOpts{Name: "generation_progress_events_total", Help: "Progress events published to subscribers"})
	WebhookDuplicates = prometheus.NewCounter(prometheus.CounterOpts{Name: "billing_webhook_duplicates_total", Help: "Billing events short-circuited by the idempotency ledger"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TasksEnqueued,
			TaskAttempts,
			TasksCompleted,
			TasksFailed,
			TaskRetries,
			TasksInFlight,
			QuotaDenials,
			ProgressPublishes,
			WebhookDuplicates,
		)
	})
	return promhttp.Handler()
}
