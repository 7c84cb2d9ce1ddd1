// Package server exposes the observability surface over HTTP: health and
// the metrics snapshot, rendered and raw. It carries no pipeline
// endpoints.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"reelocator/internal/metrics"
)

// Handler builds the diagnostics mux around a metrics store.
func Handler(store *metrics.Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(metrics.Render(store.Snapshot())))
	})

	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(store.Snapshot())
	})

	return mux
}

// Start serves the diagnostics handler on addr; it blocks like
// http.ListenAndServe.
func Start(addr string, store *metrics.Store, logger *slog.Logger) error {
	logger.Info("diagnostics server listening", "addr", addr)
	return http.ListenAndServe(addr, Handler(store))
}
