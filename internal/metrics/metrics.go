// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskbot"

// Reminder outcomes.
const (
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
	ReminderSkipped = "skipped"
)

var (
	// RemindersTotal counts reminder attempts by outcome.
	RemindersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_total",
		Help:      "Reminder deliveries by result (sent, failed, skipped).",
	}, []string{"result"})

	// ReminderTickDuration observes how long each reminder check takes.
	ReminderTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reminder_tick_duration_seconds",
		Help:      "Duration of reminder scheduler ticks.",
		Buckets:   prometheus.DefBuckets,
	})

	// ReminderTicksOverlapped counts ticks skipped because one was still running.
	ReminderTicksOverlapped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminder_ticks_overlapped_total",
		Help:      "Reminder ticks skipped because the previous tick was still running.",
	})

	// ParseResultsTotal counts task parsing attempts by path and outcome.
	ParseResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parse_results_total",
		Help:      "Task description parse attempts by source (ai, strict) and result.",
	}, []string{"source", "result"})

	// TasksCreatedTotal counts persisted tasks by origin (chat, api).
	TasksCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Tasks created by origin.",
	}, []string{"origin"})

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
