package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"quiz-attempt-service/internal/domain"
)

var (
	AttemptsBegun = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_attempts_begun_total",
			Help: "Total number of quiz attempts opened",
		},
	)

	AttemptsAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_attempts_abandoned_total",
			Help: "Total number of quiz attempts closed before submission",
		},
	)

	AttemptsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_completed_total",
			Help: "Total number of submitted quiz attempts",
		},
		[]string{"quiz_id", "trigger", "outcome"},
	)

	AttemptScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_attempt_score_percent",
			Help:    "Distribution of attempt scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"quiz_id"},
	)

	AttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_attempt_time_spent_seconds",
			Help:    "Time spent on submitted attempts",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
		[]string{"quiz_id"},
	)
)

// Register adds the collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(AttemptsBegun, AttemptsAbandoned, AttemptsCompleted, AttemptScore, AttemptDuration)
}

// ObserveCompletion records a submitted attempt.
func ObserveCompletion(result domain.AttemptResult) {
	trigger := "manual"
	if result.Attempt.AutoSubmitted {
		trigger = "timeout"
	}
	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}

	quizID := result.Attempt.QuizID
	AttemptsCompleted.WithLabelValues(quizID, trigger, outcome).Inc()
	AttemptScore.WithLabelValues(quizID).Observe(float64(result.Attempt.Score))
	AttemptDuration.WithLabelValues(quizID).Observe(float64(result.Attempt.TimeSpent))
}
