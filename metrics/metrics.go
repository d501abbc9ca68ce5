package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_decisions_total",
		Help: "Access decisions by result.",
	}, []string{"result"})

	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_events_ingested_total",
		Help: "Security events accepted by the ingestor.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_events_dropped_total",
		Help: "Events dropped on queue saturation.",
	})

	RiskScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_risk_score",
		Help:    "Distribution of computed risk scores.",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_alerts_total",
		Help: "Alerts raised by rule.",
	}, []string{"rule"})

	IncidentsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_incidents_opened_total",
		Help: "Incidents opened, automatic and manual.",
	})

	KillSwitchActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_killswitch_activations_total",
		Help: "Kill switch activations that reached TERMINATED.",
	})
)
