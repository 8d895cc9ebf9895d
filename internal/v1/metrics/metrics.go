// Package metrics declares the Prometheus instruments of the service.
//
// Naming convention: namespace_subsystem_name
//   - namespace: hearts (application-level grouping)
//   - subsystem: websocket, room, game (feature-level grouping)
//   - name: specific metric (connections_active, messages_total, ...)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks the number of open websocket bridges.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hearts",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the number of rooms held by the registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hearts",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms",
	})

	// MessagesPublished counts room bus publications by message kind.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearts",
		Subsystem: "room",
		Name:      "messages_total",
		Help:      "Total messages published on room buses",
	}, []string{"kind"})

	// TurnTimeouts counts human turns resolved by the timeout supervisor.
	TurnTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearts",
		Subsystem: "game",
		Name:      "turn_timeouts_total",
		Help:      "Total turns substituted by a bot after the turn timeout",
	})

	// GamesCompleted counts matches that reached the End state.
	GamesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hearts",
		Subsystem: "game",
		Name:      "games_completed_total",
		Help:      "Total games played to completion",
	})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
