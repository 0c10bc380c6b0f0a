package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presales_chat_turns_total",
		Help: "Chat turns processed.",
	})

	turnErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presales_chat_turn_errors_total",
		Help: "Chat turns that failed with a capability error.",
	})

	leadsCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presales_leads_captured_total",
		Help: "Leads snapshotted at discovery completion.",
	})
)
