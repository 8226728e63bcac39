// Package metrics exposes Prometheus collectors for games, raffles,
// settlements and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bingo-platform/internal/payout"
	"bingo-platform/internal/service"
)

// Metrics holds the collectors and the registry they are registered with.
// It implements payout.Recorder and service.Notifier.
type Metrics struct {
	Registry *prometheus.Registry

	numbersCalled   *prometheus.CounterVec
	gamesFinished   *prometheus.CounterVec
	raffleDraws     *prometheus.CounterVec
	raffleTickets   *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	commission      prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	gamesInProgress prometheus.Gauge
}

// New creates the collectors on a fresh registry. With runtime set, Go and
// process collectors are registered too.
func New(runtime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		numbersCalled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo",
			Name:      "numbers_called_total",
			Help:      "Total number of bingo numbers called.",
		}, []string{"mode"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo",
			Name:      "games_finished_total",
			Help:      "Total number of finished bingo games by outcome.",
		}, []string{"outcome"}),
		raffleDraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raffle",
			Name:      "draws_total",
			Help:      "Total number of raffle draws.",
		}, []string{"mode"}),
		raffleTickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raffle",
			Name:      "tickets_total",
			Help:      "Total number of raffle tickets by action.",
		}, []string{"action"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "settlements_total",
			Help:      "Total number of settle attempts by result.",
		}, []string{"kind", "result"}),
		commission: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "commission_credits_total",
			Help:      "Total commission credited to the administrator.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		gamesInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bingo",
			Name:      "games_in_progress",
			Help:      "Bingo games started and not yet finished.",
		}),
	}

	m.Registry.MustRegister(
		m.numbersCalled,
		m.gamesFinished,
		m.raffleDraws,
		m.raffleTickets,
		m.settlements,
		m.commission,
		m.httpRequests,
		m.httpDuration,
		m.gamesInProgress,
	)
	if runtime {
		m.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Settled implements payout.Recorder.
func (m *Metrics) Settled(kind payout.Kind, applied bool, commission int64) {
	result := "already_settled"
	if applied {
		result = "applied"
		if commission > 0 {
			m.commission.Add(float64(commission))
		}
	}
	m.settlements.WithLabelValues(string(kind), result).Inc()
}

// Notify implements service.Notifier.
func (m *Metrics) Notify(ev service.Event) {
	switch ev.Type {
	case service.EventGameStarted:
		m.gamesInProgress.Inc()
	case service.EventNumberCalled:
		m.numbersCalled.WithLabelValues(string(ev.Game.Mode)).Inc()
	case service.EventGameFinished:
		outcome := "winners"
		if ev.Call != nil && ev.Call.Exhausted {
			outcome = "exhausted"
		}
		m.gamesFinished.WithLabelValues(outcome).Inc()
		m.gamesInProgress.Dec()
	case service.EventRaffleDrawn:
		m.raffleDraws.WithLabelValues(string(ev.Raffle.Mode)).Inc()
	case service.EventTicketsPurchased:
		m.raffleTickets.WithLabelValues("purchase").Add(float64(len(ev.Tickets)))
	case service.EventTicketsReserved:
		m.raffleTickets.WithLabelValues("reserve").Add(float64(len(ev.Tickets)))
	case service.EventTicketApproved:
		m.raffleTickets.WithLabelValues("approve").Add(float64(len(ev.Tickets)))
	case service.EventTicketRejected:
		m.raffleTickets.WithLabelValues("reject").Add(float64(len(ev.Tickets)))
	}
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
