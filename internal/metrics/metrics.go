// Package metrics collects Prometheus metrics for the HTTP layer and the
// identity and cascade flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconcile outcomes
const (
	ReconcileUnchanged     = "unchanged"
	ReconcileUpdated       = "updated"
	ReconcileRelinked      = "relinked"
	ReconcileCreated       = "created"
	ReconcileConflictRetry = "conflict_retry"
)

// Role change results
const (
	RoleChangeOK            = "ok"
	RoleChangeProviderError = "provider_error"
	RoleChangePartialWrite  = "partial_write"
)

// Recorder is what services and middleware report to. NopRecorder satisfies it in tests.
type Recorder interface {
	RecordRequest(method, route string, status int, took time.Duration)
	RecordReconcile(outcome string)
	RecordRoleChange(result string)
	RecordCascade(deleted, reassigned int64)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	reconciles *prometheus.CounterVec
	roles      *prometheus.CounterVec
	cascade    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskmanager_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_reconcile_total",
			Help: "Identity reconciliations by outcome.",
		}, []string{"outcome"}),
		roles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_role_changes_total",
			Help: "Role changes by result.",
		}, []string{"result"}),
		cascade: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_cascade_tasks_total",
			Help: "Tasks touched by user deletion.",
		}, []string{"action"}),
	}

	reg.MustRegister(c.requests, c.latency, c.reconciles, c.roles, c.cascade)
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, took time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(took.Seconds())
}

func (c *Collector) RecordReconcile(outcome string) {
	c.reconciles.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRoleChange(result string) {
	c.roles.WithLabelValues(result).Inc()
}

func (c *Collector) RecordCascade(deleted, reassigned int64) {
	c.cascade.WithLabelValues("deleted").Add(float64(deleted))
	c.cascade.WithLabelValues("reassigned").Add(float64(reassigned))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordRequest(string, string, int, time.Duration) {}
func (NopRecorder) RecordReconcile(string)                           {}
func (NopRecorder) RecordRoleChange(string)                          {}
func (NopRecorder) RecordCascade(int64, int64)                       {}
