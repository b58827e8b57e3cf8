// Package metrics exposes lyric fetch and sync counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"lyricsync/pkg/music"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const namespace = "lyricsync"

func logger() *zerolog.Logger {
	l := log.With().Str("component", "metrics").Logger()
	return &l
}

type Metrics struct {
	registry *prometheus.Registry

	fetches          *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	providerAttempts *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	staleResults     prometheus.Counter
	lineChanges      prometheus.Counter
	ipcClients       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Completed lyric fetch cycles by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of lyric fetch cycles across all providers.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		providerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Requests made to each lyrics provider by outcome.",
		}, []string{"provider", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Lyrics cache lookups on track change.",
		}, []string{"result"}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Fetch results discarded because a newer track superseded them.",
		}),
		lineChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_changes_total",
			Help:      "Highlighted lyric line changes.",
		}),
		ipcClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ipc_clients",
			Help:      "Connected unix socket clients.",
		}),
	}

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.providerAttempts,
		m.cacheLookups,
		m.staleResults,
		m.lineChanges,
		m.ipcClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(kind music.ErrorKind) string {
	if kind == music.KindNone {
		return "success"
	}
	return string(kind)
}

func (m *Metrics) FetchCompleted(kind music.ErrorKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome(kind)).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

// ProviderAttempt matches music.AttemptObserver.
func (m *Metrics) ProviderAttempt(provider music.Provider, err error, _ time.Duration) {
	if m == nil {
		return
	}
	m.providerAttempts.WithLabelValues(string(provider.Source()), outcome(music.KindOf(err))).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) StaleResult() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}

func (m *Metrics) LineChanged() {
	if m == nil {
		return
	}
	m.lineChanges.Inc()
}

func (m *Metrics) SetIPCClients(n int) {
	if m == nil {
		return
	}
	m.ipcClients.Set(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
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
		server.Shutdown(shutdownCtx)
	}()

	logger().Info().Str("addr", addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
