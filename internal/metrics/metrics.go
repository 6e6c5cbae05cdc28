// Package metrics exposes Prometheus instrumentation for the enrichment
// engine and an optional /metrics HTTP server for long batch runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferret_searches_total",
			Help: "Total number of search backend calls",
		},
		[]string{"engine", "status"}, // status: ok, error, quota
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferret_fetches_total",
			Help: "Total number of page fetches and content-type probes",
		},
		[]string{"domain", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ferret_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	ChallengesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferret_challenges_total",
			Help: "Fetches answered with a bot-protection challenge",
		},
		[]string{"domain", "source"},
	)

	AssetsFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferret_assets_found_total",
			Help: "Assets confirmed during extraction",
		},
		[]string{"type"}, // image, pdf
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferret_rows_total",
			Help: "Catalog rows processed, by terminal status",
		},
		[]string{"status"},
	)
)

// RecordSearch updates the search counter for one backend call.
func RecordSearch(engine, status string) {
	SearchesTotal.WithLabelValues(engine, status).Inc()
}

// RecordFetch updates fetch counters given the target domain, the HTTP
// status string (or "error") and the request duration.
func RecordFetch(domain, status string, duration time.Duration) {
	FetchesTotal.WithLabelValues(domain, status).Inc()
	FetchDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
