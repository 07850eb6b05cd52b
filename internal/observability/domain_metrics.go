package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type RelayOutcome string

const (
	RelayOutcomeAnswered RelayOutcome = "answered"
	RelayOutcomeRejected RelayOutcome = "rejected"
	RelayOutcomeFailed   RelayOutcome = "failed"
)

type SQLOutcome string

const (
	SQLOutcomeExecuted SQLOutcome = "executed"
	SQLOutcomeBlocked  SQLOutcome = "blocked"
	SQLOutcomeFailed   SQLOutcome = "failed"
)

var (
	relayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_relay_requests_total",
			Help: "Total number of questions handled by the query relay.",
		},
		[]string{"outcome"},
	)
	relayLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "casedesk_relay_latency_ms",
			Help:    "Query agent round trip latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 40000},
		},
	)
	agentSQLTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_agent_sql_total",
			Help: "Total number of SQL statements produced by the query agent.",
		},
		[]string{"outcome"},
	)
	conversationEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "casedesk_conversation_entries_total",
			Help: "Total number of conversation entries appended.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		relayRequestsTotal,
		relayLatencyMs,
		agentSQLTotal,
		conversationEntriesTotal,
	)
}

func ObserveRelay(outcome RelayOutcome, elapsed time.Duration) {
	relayRequestsTotal.WithLabelValues(string(outcome)).Inc()
	if outcome != RelayOutcomeRejected {
		relayLatencyMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func ObserveAgentSQL(outcome SQLOutcome) {
	agentSQLTotal.WithLabelValues(string(outcome)).Inc()
}

func AddConversationEntries(n int) {
	if n > 0 {
		conversationEntriesTotal.Add(float64(n))
	}
}
