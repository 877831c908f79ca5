// Package metrics exposes Prometheus metrics for rule compilation and export.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks compiler activity.
//
// Metrics:
//   - cibrule_compile_total: compile calls by result
//   - cibrule_compile_duration_seconds: compile latency
//   - cibrule_export_total: rule exports
type Metrics struct {
	registry        *prometheus.Registry
	compileTotal    *prometheus.CounterVec
	compileDuration prometheus.Histogram
	exportTotal     prometheus.Counter
}

// New creates metrics registered on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		compileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cibrule",
				Name:      "compile_total",
				Help:      "Total number of rule compilations by result",
			},
			[]string{"result"},
		),
		compileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "cibrule",
				Name:      "compile_duration_seconds",
				Help:      "Duration of rule compilation in seconds",
				// Compiles are in-memory; most finish well under a millisecond
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to 160ms
			},
		),
		exportTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cibrule",
				Name:      "export_total",
				Help:      "Total number of rule exports",
			},
		),
	}

	m.registry.MustRegister(
		m.compileTotal,
		m.compileDuration,
		m.exportTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCompile records one compilation with its result label.
func (m *Metrics) ObserveCompile(result string, d time.Duration) {
	m.compileTotal.WithLabelValues(result).Inc()
	m.compileDuration.Observe(d.Seconds())
}

// IncExport records one exported rule set.
func (m *Metrics) IncExport() {
	m.exportTotal.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
