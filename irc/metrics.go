package irc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectAttempts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_connect_attempts",
	Help: "Number of connection attempts to any server",
})

var sessionsEstablished = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_sessions_established",
	Help: "Number of sessions that reached the active state",
})

var keepalivePings = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_keepalive_pings",
	Help: "Number of keepalive probes sent",
})

var zombieSessions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_zombie_sessions",
	Help: "Number of sessions dropped for unanswered keepalive probes",
})

var forcedReconnects = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_forced_reconnects",
	Help: "Number of reconnects requested by the health monitor",
})

var relocations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_relocations",
	Help: "Number of users forcibly moved to the redirect channel",
})

var connState = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "alphababoon_conn_state",
	Help: "Current connection state (0 disconnected, 1 connecting, 2 joining, 3 active, 4 reconnecting)",
})

func stateGaugeValue(st ConnState) float64 {
	switch st {
	case StateConnecting:
		return 1
	case StateJoining:
		return 2
	case StateActive:
		return 3
	case StateReconnecting:
		return 4
	default:
		return 0
	}
}
