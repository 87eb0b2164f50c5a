package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_active_sessions",
		Help: "Number of bridged calls currently running",
	})
	FunctionCallsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_function_calls_in_flight",
		Help: "Number of agent function calls awaiting a capability result",
	})
)

// Counters
var (
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_sessions_created_total",
		Help: "Total telephony connections accepted into a session",
	})
	SessionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_sessions_rejected_total",
		Help: "Telephony connections rejected due to the session limit",
	})
	SessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_sessions_ended_total",
		Help: "Sessions torn down, by the duty that ended them",
	}, []string{"reason"})
	AgentHandshakeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_agent_handshake_failures_total",
		Help: "Agent connections that failed before the session started",
	})
	FramesForwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_frames_forwarded_total",
		Help: "Audio frames written to the agent",
	})
	MediaEventsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_media_events_sent_total",
		Help: "Agent audio messages relayed to the telephony leg",
	})
	ClearEventsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_clear_events_sent_total",
		Help: "Barge-in clear events sent to the telephony leg",
	})
	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_decode_errors_total",
		Help: "Messages dropped because they could not be decoded, by leg",
	}, []string{"leg"})
	FunctionCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_function_calls_total",
		Help: "Agent function calls by capability name and outcome",
	}, []string{"name", "outcome"})
)

// Histograms
var (
	FunctionCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_function_call_duration_ms",
		Help:    "Capability invocation duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
	}, []string{"name"})
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_session_duration_seconds",
		Help:    "Bridged call duration in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})
)
