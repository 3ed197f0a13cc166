// Package api exposes the HTTP surface: REST endpoints, the Prometheus
// scrape endpoint and the WebSocket stream.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/reservly/pulsed/internal/alert"
	"github.com/reservly/pulsed/internal/collector"
	"github.com/reservly/pulsed/internal/sla"
	"github.com/reservly/pulsed/internal/source"
	"github.com/reservly/pulsed/internal/store"
)

// Deps carries everything the HTTP layer reads from or acts on.
type Deps struct {
	Samples  *collector.SampleStore
	Store    *store.Store
	Writer   *store.RetryWriter
	Registry *alert.Registry
	Sources  *source.Registry
	SLA      *sla.Aggregator
	WS       http.Handler
	Log      *zap.Logger
}

// NewRouter wires all API routes.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	sn := &snapshotsAPI{samples: d.Samples, store: d.Store}
	aa := &alertsAPI{registry: d.Registry, store: d.Store}
	sa := &slaAPI{agg: d.SLA, store: d.Store, writer: d.Writer}
	ha := &healthAPI{sources: d.Sources, registry: d.Registry}

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/snapshots/latest", sn.latest).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/history", sn.history).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/query", sn.query).Methods(http.MethodGet)

	v1.HandleFunc("/alerts", aa.list).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/{id}", aa.get).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/{id}/acknowledge", aa.acknowledge).Methods(http.MethodPost)
	v1.HandleFunc("/alerts/{id}/resolve", aa.resolve).Methods(http.MethodPost)

	v1.HandleFunc("/sla/reports", sa.list).Methods(http.MethodGet)
	v1.HandleFunc("/sla/reports/generate", sa.generate).Methods(http.MethodPost)
	v1.HandleFunc("/sla/reports/export", sa.exportCSV).Methods(http.MethodGet)

	v1.HandleFunc("/health", ha.health).Methods(http.MethodGet)
	v1.Handle("/ws", d.WS).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return withMiddleware(r, d.Log)
}

func withMiddleware(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		defer func() {
			if err := recover(); err != nil {
				log.Error("http panic", zap.Any("panic", err), zap.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)

		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
