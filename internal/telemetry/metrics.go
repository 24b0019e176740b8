package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSSessions tracks currently connected observers.
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pre_reserva_ws_sessions",
		Help: "Open WebSocket sessions.",
	})

	// Actions counts inbound slot actions by type and outcome.
	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pre_reserva_actions_total",
		Help: "Slot actions processed, labeled by action and result.",
	}, []string{"action", "result"})

	// Sweeps counts sweep runs across all trigger paths.
	Sweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pre_reserva_sweeps_total",
		Help: "Expiry sweep executions.",
	})

	// ExpiredSlots counts soft-locks reverted by the sweeper.
	ExpiredSlots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pre_reserva_expired_slots_total",
		Help: "Soft-locked slots freed after their expiry passed.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
