package metrics

import (
	"net/http"
	"time"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported at /metrics.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	InvitesCreatedTotal    *prometheus.CounterVec
	InvitesAcceptedTotal   prometheus.Counter
	InvitesRevokedTotal    prometheus.Counter
	InviteRejectionsTotal  *prometheus.CounterVec
	AccessRevokedTotal     prometheus.Counter
	ShareTokensTotal       *prometheus.CounterVec
	ShareResolutionsTotal  *prometheus.CounterVec
	AuthzDecisionsTotal    *prometheus.CounterVec
	OutboxDispatchedTotal  *prometheus.CounterVec
	OutboxFailuresTotal    *prometheus.CounterVec
	SSEConnectionsActive   prometheus.Gauge
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolshare_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InvitesCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_invites_created_total",
				Help: "Invites created, by access level",
			},
			[]string{"level"},
		),
		InvitesAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolshare_invites_accepted_total",
			Help: "Invites accepted",
		}),
		InvitesRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolshare_invites_revoked_total",
			Help: "Invites revoked by project owners",
		}),
		InviteRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_invite_rejections_total",
				Help: "Invite creations or acceptances rejected, by reason",
			},
			[]string{"reason"},
		),
		AccessRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolshare_access_revoked_total",
			Help: "Tool access grants removed",
		}),
		ShareTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_share_tokens_total",
				Help: "Share token mutations, by operation",
			},
			[]string{"operation"},
		),
		ShareResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_share_resolutions_total",
				Help: "Share token resolutions, by result",
			},
			[]string{"result"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_authz_decisions_total",
				Help: "Authorization decisions, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		OutboxDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_outbox_dispatched_total",
				Help: "Post-commit effects dispatched, by kind",
			},
			[]string{"kind"},
		),
		OutboxFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolshare_outbox_failures_total",
				Help: "Post-commit effects that failed, by kind",
			},
			[]string{"kind"},
		),
		SSEConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toolshare_sse_connections_active",
			Help: "Open sharing event streams",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvitesCreatedTotal,
		m.InvitesAcceptedTotal,
		m.InvitesRevokedTotal,
		m.InviteRejectionsTotal,
		m.AccessRevokedTotal,
		m.ShareTokensTotal,
		m.ShareResolutionsTotal,
		m.AuthzDecisionsTotal,
		m.OutboxDispatchedTotal,
		m.OutboxFailuresTotal,
		m.SSEConnectionsActive,
	)

	return m
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Middleware records request count and latency.
func (m *Metrics) Middleware() drift.HandlerFunc {
	return func(c *drift.Context) {
		start := time.Now()
		c.Next()
		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method).Inc()
		m.HTTPRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
