// Package telemetry exposes the engine's own operational counters.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CollectTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_collect_ticks_total",
		Help: "Collector ticks that produced a snapshot",
	})

	CollectTicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_collect_ticks_skipped_total",
		Help: "Collector ticks skipped because every domain failed",
	})

	DomainFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsed_collect_domain_failures_total",
		Help: "Per-domain fetch failures",
	}, []string{"domain"})

	EvalQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_eval_queue_dropped_total",
		Help: "Queued snapshots dropped because evaluation lagged",
	})

	ActiveAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulsed_alerts_active",
		Help: "Alerts currently in the live registry, not yet resolved",
	})

	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsed_alerts_created_total",
		Help: "Alerts created",
	}, []string{"severity"})

	StreamDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_stream_deliveries_total",
		Help: "Payloads delivered to observers",
	})

	StreamDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_stream_delivery_failures_total",
		Help: "Failed observer deliveries",
	})

	StoreRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_store_retries_total",
		Help: "Durable-store write retries",
	})

	NotifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsed_notify_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full",
	})
)
