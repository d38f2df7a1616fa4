package game

import "github.com/prometheus/client_golang/prometheus"

var (
	gameLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcherd",
			Subsystem: "game",
			Name:      "launches_total",
			Help:      "Launch attempts by outcome",
		},
		[]string{"result"},
	)

	gameExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launcherd",
			Subsystem: "game",
			Name:      "exits_total",
			Help:      "Game session exits by classification",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(gameLaunches, gameExits)
}
