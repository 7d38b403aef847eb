package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SpawnEntitiesTotal counts entities activated by spawn events
	SpawnEntitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawnlord_entities_spawned_total",
			Help: "Total number of entities activated by spawn events",
		},
		[]string{"scheduler_id"},
	)

	// SpawnSlotsDroppedTotal counts batch slots the pool could not fill
	SpawnSlotsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawnlord_slots_dropped_total",
			Help: "Total number of batch slots dropped because the pool was exhausted",
		},
		[]string{"scheduler_id"},
	)

	SpawnEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawnlord_spawn_events_total",
			Help: "Total number of spawn events",
		},
		[]string{"scheduler_id"},
	)

	MilestonesFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawnlord_milestones_fired_total",
			Help: "Total number of milestones fired",
		},
		[]string{"scheduler_id", "tier"},
	)

	// IntervalBoundSeconds tracks the current spawn interval bounds
	IntervalBoundSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spawnlord_interval_bound_seconds",
			Help: "Current spawn interval bound in seconds",
		},
		[]string{"scheduler_id", "bound"},
	)

	EventsArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spawnlord_events_archived_total",
			Help: "Total number of audit events moved to the archive",
		},
	)

	ElapsedSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spawnlord_elapsed_seconds",
			Help: "Accumulated scheduler time in seconds",
		},
		[]string{"scheduler_id"},
	)
)

func init() {
	prometheus.MustRegister(SpawnEntitiesTotal)
	prometheus.MustRegister(SpawnSlotsDroppedTotal)
	prometheus.MustRegister(SpawnEventsTotal)
	prometheus.MustRegister(MilestonesFiredTotal)
	prometheus.MustRegister(IntervalBoundSeconds)
	prometheus.MustRegister(ElapsedSeconds)
	prometheus.MustRegister(EventsArchivedTotal)
}
