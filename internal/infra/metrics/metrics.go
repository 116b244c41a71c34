// Package metrics records what a cleaner run did. The cleaner is a short
// lived batch job, so metrics are pushed to a Prometheus Pushgateway at the end
// of each run instead of being scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "spread_expire"

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry       *prometheus.Registry
	spreadsDeleted *prometheus.CounterVec
	noticesSent    *prometheus.CounterVec
	resetsSent     *prometheus.CounterVec
	resetsRefused  *prometheus.CounterVec
	entityFailures prometheus.Counter
	lastRun        prometheus.Gauge
	runDuration    prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		spreadsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "spreads_deleted_total",
			Help: "Expired spreads removed by the cleaner.",
		}, []string{"spread"}),
		noticesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notices_sent_total",
			Help: "Escalation notices queued, by template.",
		}, []string{"template"}),
		resetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resets_sent_total",
			Help: "Reset notices queued after an expiry was extended.",
		}, []string{"template"}),
		resetsRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resets_refused_total",
			Help: "Resets refused because the new expiry was too close.",
		}, []string{"spread"}),
		entityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "entity_failures_total",
			Help: "Entities skipped because processing them failed.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds",
			Help: "Unix time the last cleaner run finished.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_duration_seconds",
			Help: "Wall time of the last cleaner run.",
		}),
	}
	r.registry.MustRegister(r.spreadsDeleted, r.noticesSent, r.resetsSent, r.resetsRefused,
		r.entityFailures, r.lastRun, r.runDuration)
	return r
}

func (r *Recorder) SpreadDeleted(spread string) {
	if r != nil {
		r.spreadsDeleted.WithLabelValues(spread).Inc()
	}
}

func (r *Recorder) NoticeSent(template string) {
	if r != nil {
		r.noticesSent.WithLabelValues(template).Inc()
	}
}

func (r *Recorder) ResetSent(template string) {
	if r != nil {
		r.resetsSent.WithLabelValues(template).Inc()
	}
}

func (r *Recorder) ResetRefused(spread string) {
	if r != nil {
		r.resetsRefused.WithLabelValues(spread).Inc()
	}
}

func (r *Recorder) EntityFailed() {
	if r != nil {
		r.entityFailures.Inc()
	}
}

func (r *Recorder) RunFinished(started, finished time.Time) {
	if r != nil {
		r.lastRun.Set(float64(finished.Unix()))
		r.runDuration.Set(finished.Sub(started).Seconds())
	}
}

// Push sends the collected metrics to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
