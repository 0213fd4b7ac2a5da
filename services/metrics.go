package services

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_events_ingested_total",
			Help: "Activity events handled by the ingestor",
		},
		[]string{"type", "result"},
	)
	achievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_achievements_unlocked_total",
			Help: "Achievement unlocks",
		},
		[]string{"category"},
	)
	xpCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_xp_credited_total",
			Help: "XP credited to the ledger",
		},
		[]string{"source"},
	)
	streakResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_streak_resets_total",
			Help: "Streaks whose active-today flag was cleared by the daily job",
		},
	)
	dispatchDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_dispatch_dropped_total",
			Help: "Activity events dropped because the dispatch queue was full",
		},
	)
	dispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "progression_dispatch_queue_depth",
			Help: "Activity events waiting for a dispatcher worker",
		},
	)
)

// RegisterMetrics registers the progression metrics. Call this once from main.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(eventsIngested, achievementsUnlocked, xpCredited, streakResets, dispatchDropped, dispatchQueueDepth)
}
