// Package metrics implements Prometheus metrics and the status endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsReceivedTotal counts all datagrams read from the socket.
	PacketsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coopad_packets_received_total",
			Help: "Total number of datagrams received",
		},
	)

	// PacketsAcceptedTotal counts packets that passed decode and admission.
	PacketsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coopad_packets_accepted_total",
			Help: "Total number of packets accepted by the admission engine",
		},
	)

	// PacketsRejectedTotal counts rejected packets by reason.
	PacketsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coopad_packets_rejected_total",
			Help: "Total number of packets rejected, by reason",
		},
		[]string{"reason"},
	)

	// SinkWritesTotal counts states forwarded to the sink, by slot.
	SinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coopad_sink_writes_total",
			Help: "Total number of states written to the virtual controller sink",
		},
		[]string{"slot"},
	)

	// SlotRateHz tracks the per-slot receive rate.
	SlotRateHz = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coopad_slot_rate_hz",
			Help: "Packets per second currently routed to each slot",
		},
		[]string{"slot"},
	)

	// SlotJitterMillis tracks inferred jitter per slot from inter-arrival
	// variance.
	SlotJitterMillis = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coopad_slot_jitter_ms",
			Help: "Inter-arrival jitter per slot in milliseconds",
		},
		[]string{"slot"},
	)

	// TrackedClients is the current registry client count.
	TrackedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coopad_tracked_clients",
			Help: "Number of client records currently tracked",
		},
	)

	// BlockedClients is the count of currently blocked clients.
	BlockedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coopad_blocked_clients",
			Help: "Number of currently blocked clients",
		},
	)

	// SweepEvictionsTotal counts records removed by the periodic sweep.
	SweepEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coopad_sweep_evictions_total",
			Help: "Total records evicted by the periodic sweep, by kind",
		},
		[]string{"kind"},
	)
)
