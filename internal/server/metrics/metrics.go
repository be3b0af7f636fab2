// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	LiveConnections      prometheus.Gauge
	OnlineUsers          prometheus.Gauge
	MessagesAppended     prometheus.Counter
	AppendConflicts      prometheus.Counter
	MessagesDropped      prometheus.Counter
	ConversationsStarted prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_live_connections",
			Help: "Number of authenticated realtime connections.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of users with at least one live connection.",
		}),
		MessagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Messages durably stored.",
		}),
		AppendConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_message_append_conflicts_total",
			Help: "Append attempts that hit an occupied time slot.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_dropped_total",
			Help: "Messages dropped after exhausting append attempts.",
		}),
		ConversationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_conversations_started_total",
			Help: "Conversations created through start-chat.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.LiveConnections, m.OnlineUsers,
		m.MessagesAppended, m.AppendConflicts, m.MessagesDropped, m.ConversationsStarted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
