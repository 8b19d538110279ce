package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Review outcomes
const (
	OutcomePassed   = "passed"
	OutcomeFailed   = "failed"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the application collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	reviews         *prometheus.CounterVec
	wordsRegistered *prometheus.CounterVec
	highlightTerms  prometheus.Histogram
	pendingDrained  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webvoca_reviews_total",
			Help: "Review grades applied, by outcome.",
		}, []string{"outcome"}),
		wordsRegistered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webvoca_words_registered_total",
			Help: "Captured selections, by whether they created or updated a word.",
		}, []string{"result"}),
		highlightTerms: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "webvoca_highlight_terms",
			Help:    "Terms selected per highlight plan.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 80, 120},
		}),
		pendingDrained: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webvoca_pending_drained_total",
			Help: "Pending capture requests processed by the drain job, by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveReview(outcome string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWordRegistered(created bool) {
	if m == nil {
		return
	}
	result := "updated"
	if created {
		result = "created"
	}
	m.wordsRegistered.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHighlightTerms(n int) {
	if m == nil {
		return
	}
	m.highlightTerms.Observe(float64(n))
}

func (m *Metrics) ObservePendingDrained(result string) {
	if m == nil {
		return
	}
	m.pendingDrained.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	logger.Info("Metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return nil
}
