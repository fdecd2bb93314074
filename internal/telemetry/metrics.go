package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quiz"

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Quiz sessions that reached the first question.",
	})

	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_rejected_total",
		Help:      "Session starts that ended in a terminal error, by reason.",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently registered in the session store.",
	})

	AnswersRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_total",
		Help:      "Questions resolved, by outcome (correct, incorrect, timeout).",
	}, []string{"outcome"})

	ResultsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_persisted_total",
		Help:      "Result record emissions, by outcome.",
	}, []string{"outcome"})

	ContentLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "content_cache_lookups_total",
		Help:      "Bank and group cache lookups, by cache and result.",
	}, []string{"cache", "result"})
)

// Outcome label values.
const (
	OutcomeCorrect   = "correct"
	OutcomeIncorrect = "incorrect"
	OutcomeTimeout   = "timeout"
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	ResultHit        = "hit"
	ResultMiss       = "miss"
)
