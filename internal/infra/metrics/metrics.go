// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	tokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redemption_tokens_issued_total",
			Help: "Redemption tokens minted.",
		},
	)

	redemptionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_requests_rejected_total",
			Help: "Redemption requests rejected by eligibility reason.",
		},
		[]string{"reason"},
	)

	tokensConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redemption_tokens_consumed_total",
			Help: "Tokens finalized by a staff or partner scan.",
		},
	)

	consumeRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_consume_rejected_total",
			Help: "Consume attempts rejected (not_found/expired/already_consumed).",
		},
		[]string{"reason"},
	)

	tokensExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redemption_tokens_expired_total",
			Help: "Issued tokens swept to expired.",
		},
	)

	pointsRefunded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redemption_points_refunded_total",
			Help: "Points credited back for expired tokens (refund policy only).",
		},
	)

	consumeLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "redemption_consume_latency_ms",
			Help:    "Token consume latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
	)

	wsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_sessions_bound",
			Help: "Live, member-bound websocket sessions.",
		},
	)

	eventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_delivered_total",
			Help: "Finalization events by delivery outcome (delivered/dropped).",
		},
		[]string{"outcome"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by entity and result (hit/miss).",
		},
		[]string{"entity", "result"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			tokensIssued, redemptionsRejected,
			tokensConsumed, consumeRejected,
			tokensExpired, pointsRefunded,
			consumeLatencyMs,
			wsSessions, eventsDelivered,
			cacheRequests,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- Redemption helpers --------

func IncTokenIssued()                { tokensIssued.Inc() }
func IncRedemptionRejected(r string) { redemptionsRejected.WithLabelValues(norm(r)).Inc() }

func IncTokenConsumed()           { tokensConsumed.Inc() }
func IncConsumeRejected(r string) { consumeRejected.WithLabelValues(norm(r)).Inc() }

func IncTokensExpired(n int)   { tokensExpired.Add(float64(n)) }
func AddPointsRefunded(p int64) { pointsRefunded.Add(float64(p)) }

func ObserveConsumeLatency(ms int) { consumeLatencyMs.Observe(float64(ms)) }

func IncCacheRequest(entity, result string) {
	cacheRequests.WithLabelValues(norm(entity), norm(result)).Inc()
}

// -------- Realtime helpers --------

func SessionBound()   { wsSessions.Inc() }
func SessionUnbound() { wsSessions.Dec() }

func EventDelivered(n int) {
	if n > 0 {
		eventsDelivered.WithLabelValues("delivered").Add(float64(n))
	} else {
		eventsDelivered.WithLabelValues("dropped").Inc()
	}
}
