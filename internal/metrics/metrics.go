// Package metrics holds the Prometheus collectors of the sync client and the hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultStale   = "stale"
	ResultDropped = "dropped"
)

var (
	// Pulls counts full partition reads by the reconciler.
	Pulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "sync",
		Name:      "pulls_total",
		Help:      "Full partition pulls by outcome.",
	}, []string{"result"})

	// Pushes counts replicated local mutations.
	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "sync",
		Name:      "pushes_total",
		Help:      "Pushed local mutations by operation and outcome.",
	}, []string{"op", "result"})

	// HubRequests counts hub API calls.
	HubRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "hub",
		Name:      "requests_total",
		Help:      "Hub API requests by route and status class.",
	}, []string{"route", "status"})

	// HubSessions tracks open change-feed websocket sessions.
	HubSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Subsystem: "hub",
		Name:      "feed_sessions",
		Help:      "Open change-feed sessions.",
	})

	// HubBroadcasts counts change signals fanned out to sessions.
	HubBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "hub",
		Name:      "broadcasts_total",
		Help:      "Change signals broadcast, by source.",
	}, []string{"source"})

	// HubCache counts snapshot cache lookups.
	HubCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "hub",
		Name:      "snapshot_cache_total",
		Help:      "Snapshot cache lookups by outcome.",
	}, []string{"outcome"})

	// HubRateLimited counts requests rejected by the rate limiter.
	HubRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Subsystem: "hub",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
)
