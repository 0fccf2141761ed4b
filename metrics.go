package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnnvv/peeple/match"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	swipes         *prometheus.CounterVec
	matchesCreated prometheus.Counter
	feedCandidates prometheus.Histogram
	httpDuration   *prometheus.HistogramVec
	gatherer       prometheus.Gatherer
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		swipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peeple_swipes_total",
			Help: "Recorded swipes by decision.",
		}, []string{"decision"}),
		matchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peeple_matches_created_total",
			Help: "Matches created from mutual likes.",
		}),
		feedCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "peeple_feed_candidates",
			Help:    "Candidates returned per feed page.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peeple_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
	reg.MustRegister(m.swipes, m.matchesCreated, m.feedCandidates, m.httpDuration)
	return m
}

func (m *Metrics) swipeRecorded(kind match.Kind) {
	m.swipes.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) feedServed(n int) {
	m.feedCandidates.Observe(float64(n))
}

// MatchCreated implements match.Notifier.
func (m *Metrics) MatchCreated(context.Context, *match.Match) {
	m.matchesCreated.Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// instrument observes request latency labelled by the matched chi route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// notifiers fans one match event out to several listeners.
type notifiers []match.Notifier

func (ns notifiers) MatchCreated(ctx context.Context, m *match.Match) {
	for _, n := range ns {
		n.MatchCreated(ctx, m)
	}
}
