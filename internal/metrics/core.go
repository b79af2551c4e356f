package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maestro_rooms_active",
		Help: "Number of rooms currently registered",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_transitions_total",
		Help: "Playback state transitions per room state machine",
	}, []string{"state_from", "state_to"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_commands_total",
		Help: "Commands processed by command name and result",
	}, []string{"command", "result"})

	QueueDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_queue_drops_total",
		Help: "Items rejected from room queues by reason",
	}, []string{"reason"})

	MailboxDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_mailbox_drops_total",
		Help: "Backend events dropped because a room mailbox was full",
	}, []string{"event"})

	IdleTimersArmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_idle_timers_armed_total",
		Help: "Total inactivity timers armed",
	})

	IdleDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_idle_disconnects_total",
		Help: "Rooms torn down by the inactivity supervisor",
	})
)

// IncQueueDrop records a rejected queue insert with a concrete reason.
func IncQueueDrop(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	QueueDropsTotal.WithLabelValues(reason).Inc()
}

// IncMailboxDrop records a backend event dropped on mailbox backpressure.
func IncMailboxDrop(event string) {
	if event == "" {
		event = "unknown"
	}
	MailboxDropsTotal.WithLabelValues(event).Inc()
}

// RecordTransition counts a room state machine transition.
func RecordTransition(from, to string) {
	TransitionsTotal.WithLabelValues(from, to).Inc()
}
