package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry          *prometheus.Registry
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	EventsTotal       *prometheus.CounterVec
	CommandsTotal     *prometheus.CounterVec
	SendDropsTotal    prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safewatch",
			Name:      "active_connections",
			Help:      "Number of live websocket connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safewatch",
			Name:      "active_rooms",
			Help:      "Number of rooms with at least one member",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safewatch",
			Name:      "events_total",
			Help:      "Total inbound signaling events by kind",
		}, []string{"event"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safewatch",
			Name:      "commands_total",
			Help:      "Total dispatched commands by outcome",
		}, []string{"outcome"}),
		SendDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safewatch",
			Name:      "send_drops_total",
			Help:      "Messages dropped because a client send buffer was full",
		}),
	}
	r.MustRegister(m.ActiveConnections, m.ActiveRooms, m.EventsTotal, m.CommandsTotal, m.SendDropsTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
