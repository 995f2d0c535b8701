// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lootboard"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	skippedEvents   prometheus.Counter
	accounts        prometheus.Gauge
	pollOutcomes    *prometheus.CounterVec
	activePolls     prometheus.Gauge
	wsClients       prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Leaderboard refreshes by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time spent loading events and ranking.",
			Buckets:   prometheus.DefBuckets,
		}),
		skippedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_events_total",
			Help:      "RewardClaimed events skipped for malformed data.",
		}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leaderboard_accounts",
			Help:      "Accounts with recorded rewards at the last refresh.",
		}),
		pollOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_outcomes_total",
			Help:      "Reward poll runs by terminal state.",
		}, []string{"state"}),
		activePolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_polls",
			Help:      "Reward polls currently running.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.refreshes,
		m.refreshDuration,
		m.skippedEvents,
		m.accounts,
		m.pollOutcomes,
		m.activePolls,
		m.wsClients,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// ObserveHTTP wraps next and records its status and duration under route.
func (m *Metrics) ObserveHTTP(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Refresh records one leaderboard refresh.
func (m *Metrics) Refresh(d time.Duration, ok bool, accounts, skipped int) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(d.Seconds())
	if !ok {
		m.refreshes.WithLabelValues("unavailable").Inc()
		return
	}
	m.refreshes.WithLabelValues("ready").Inc()
	m.accounts.Set(float64(accounts))
	m.skippedEvents.Add(float64(skipped))
}

// PollStarted marks a poll run as active.
func (m *Metrics) PollStarted() {
	if m == nil {
		return
	}
	m.activePolls.Inc()
}

// PollFinished records a poll run's terminal state.
func (m *Metrics) PollFinished(state string) {
	if m == nil {
		return
	}
	m.activePolls.Dec()
	m.pollOutcomes.WithLabelValues(state).Inc()
}

// WSClients sets the number of connected WebSocket clients.
func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
