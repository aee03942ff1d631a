package speech

import "github.com/prometheus/client_golang/prometheus"

// Turn outcomes recorded by the controller.
const (
	OutcomeCompleted        = "completed"
	OutcomeEmptyTranscript  = "empty_transcript"
	OutcomeFailed           = "failed"
	OutcomePermissionDenied = "permission_denied"
	OutcomeCancelled        = "cancelled"
)

var (
	voiceTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_voice_turns_total",
			Help: "Voice turns by outcome.",
		},
		[]string{"outcome"},
	)
	voiceFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_voice_fallbacks_total",
			Help: "Synthesis retries with the fallback voice after a quota error.",
		},
	)
	voiceTurnSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "console_voice_turn_duration_seconds",
			Help:    "Wall time from capture start to playback end.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(voiceTurns, voiceFallbacks, voiceTurnSeconds)
}
