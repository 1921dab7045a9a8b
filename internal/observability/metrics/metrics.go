package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConciergeMetrics exposes counters and histograms for the chat pipeline.
type ConciergeMetrics struct {
	inboundTotal    *prometheus.CounterVec
	outboundTotal   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec
	turnsTotal      *prometheus.CounterVec
	eventSearchDays prometheus.Histogram
}

func NewConciergeMetrics(reg prometheus.Registerer) *ConciergeMetrics {
	m := &ConciergeMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightlife",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound chat webhooks",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightlife",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound chat replies",
		}, []string{"channel", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nightlife",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightlife",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Conversation turns by the branch that answered",
		}, []string{"branch"}),
		eventSearchDays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nightlife",
			Subsystem: "conversation",
			Name:      "event_search_days",
			Help:      "Number of dates queried per event search",
			Buckets:   prometheus.LinearBuckets(1, 1, 9),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency, m.turnsTotal, m.eventSearchDays)
	return m
}

func (m *ConciergeMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *ConciergeMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *ConciergeMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}

func (m *ConciergeMetrics) ObserveTurn(branch string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(branch).Inc()
}

func (m *ConciergeMetrics) ObserveEventSearchDays(days int) {
	if m == nil {
		return
	}
	m.eventSearchDays.Observe(float64(days))
}
