package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueJoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pvp_queue_joins_total",
			Help: "Accepted join_queue requests",
		},
	)
	QueueTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pvp_queue_timeouts_total",
			Help: "Sessions that waited out the queue timeout",
		},
	)
	Matches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvp_matches_total",
			Help: "Rooms created by game type",
		},
		[]string{"game_type"},
	)
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvp_settlements_total",
			Help: "Settled matches by game type and reason",
		},
		[]string{"game_type", "reason"},
	)
	VerdictMismatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvp_verdict_mismatches_total",
			Help: "Self-reported verdicts that disagree with the referee",
		},
		[]string{"game_type"},
	)
	ActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pvp_active_rooms",
			Help: "Rooms currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(QueueJoins)
	prometheus.MustRegister(QueueTimeouts)
	prometheus.MustRegister(Matches)
	prometheus.MustRegister(Settlements)
	prometheus.MustRegister(VerdictMismatches)
	prometheus.MustRegister(ActiveRooms)
}
