// Package metrics provides Prometheus instrumentation for the StrangerHub
// realtime engine. It exposes gauges for presence, pool, and room counts,
// counters for relay throughput, and a histogram for matching wait time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OnlineUsers tracks the current size of the presence registry.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerhub_online_users",
		Help: "Current number of connected users",
	})

	// WaitingPoolSize tracks the current number of users in the waiting pool.
	WaitingPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerhub_waiting_pool_size",
		Help: "Current number of users waiting for a match",
	})

	// ActiveRooms tracks the current number of rooms in the room table.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerhub_active_rooms",
		Help: "Current number of active ephemeral or promoted rooms",
	})

	// MessagesTotal counts relayed messages, labeled by outcome:
	// "relayed", "persisted", or "dropped".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerhub_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"outcome"})

	// MatchesTotal counts completed matches.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strangerhub_matches_total",
		Help: "Total number of pairings made",
	})

	// PromotionsTotal counts rooms promoted to persisted conversations.
	PromotionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strangerhub_promotions_total",
		Help: "Total number of rooms promoted to saved conversations",
	})

	// MatchWaitSeconds records how long users waited in the pool before
	// being matched.
	MatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strangerhub_match_wait_seconds",
		Help:    "Time from entering the waiting pool to being matched",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
	})

	// PersistQueueDepth tracks the backlog of the persistence worker.
	PersistQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerhub_persist_queue_depth",
		Help: "Current number of queued persistence jobs",
	})
)

func init() {
	prometheus.MustRegister(
		OnlineUsers,
		WaitingPoolSize,
		ActiveRooms,
		MessagesTotal,
		MatchesTotal,
		PromotionsTotal,
		MatchWaitSeconds,
		PersistQueueDepth,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
