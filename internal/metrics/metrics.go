// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xb-go/internal/xb"
)

// Collector records TickReports. Each Collector owns its registry so tests
// and multiple instances don't collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	uploadedBytes *prometheus.CounterVec
	swept         prometheus.Counter
	duration      *prometheus.HistogramVec
	lastSuccess   *prometheus.GaugeVec
}

var _ xb.TickObserver = (*Collector)(nil)

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xb_ticks_total",
			Help: "Total number of scheduler ticks by backup kind",
		}, []string{"kind"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xb_tick_failures_total",
			Help: "Total number of failed scheduler ticks by backup kind",
		}, []string{"kind"}),
		uploadedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xb_uploaded_bytes_total",
			Help: "Total archive bytes uploaded by backup kind",
		}, []string{"kind"}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Name: "xb_swept_archives_total",
			Help: "Total number of archives deleted by retention sweeps",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xb_tick_duration_seconds",
			Help:    "Scheduler tick duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"kind"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xb_last_success_timestamp_seconds",
			Help: "Unix time of the last successful backup by kind",
		}, []string{"kind"}),
	}
}

// TickFinished implements xb.TickObserver.
func (c *Collector) TickFinished(report *xb.TickReport) {
	kind := kindLabel(report)
	c.ticks.WithLabelValues(kind).Inc()
	c.duration.WithLabelValues(kind).Observe(report.Finished.Sub(report.Started).Seconds())
	c.swept.Add(float64(report.Swept))

	if report.Err != nil {
		c.failures.WithLabelValues(kind).Inc()
		return
	}
	if report.Result != nil {
		c.uploadedBytes.WithLabelValues(kind).Add(float64(report.Result.Size))
		c.lastSuccess.WithLabelValues(kind).Set(float64(report.Finished.Unix()))
	}
}

func kindLabel(report *xb.TickReport) string {
	if report.Result != nil {
		return report.Result.Kind.String()
	}
	var te *xb.TickError
	if errors.As(report.Err, &te) {
		return te.Kind.String()
	}
	// Listing failed before a state was known.
	return "unknown"
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger xb.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
