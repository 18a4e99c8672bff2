package engine

import (
	"fmt"

	"quiz-attempt-service/internal/domain"
)

// lowTimeThreshold marks the last five minutes of a timed attempt.
const lowTimeThreshold = 300

// QuestionView is a question as shown to the participant. Correct answers
// never leave the engine; the explanation is revealed after submission.
type QuestionView struct {
	ID          string              `json:"id"`
	Type        domain.QuestionType `json:"type"`
	Prompt      string              `json:"prompt"`
	Options     []string            `json:"options"`
	Media       string              `json:"media,omitempty"`
	Points      int                 `json:"points"`
	Explanation string              `json:"explanation,omitempty"`
}

// View is a read-only snapshot of an attempt.
type View struct {
	AttemptID        string              `json:"attemptId"`
	QuizID           string              `json:"quizId"`
	Title            string              `json:"title"`
	State            State               `json:"state"`
	CurrentIndex     int                 `json:"currentIndex"`
	QuestionCount    int                 `json:"questionCount"`
	Question         *QuestionView       `json:"question,omitempty"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	ElapsedSeconds   int                 `json:"elapsedSeconds"`
	Clock            string              `json:"clock"`
	TimeLow          bool                `json:"timeLow"`
	Progress         int                 `json:"progress"`
	Selections       map[string][]int    `json:"selections"`
	Attempt          *domain.QuizAttempt `json:"attempt,omitempty"`
}

func (e *Engine) viewLocked() View {
	view := View{
		AttemptID:        e.opts.AttemptID,
		QuizID:           e.quiz.ID,
		Title:            e.quiz.Title,
		State:            e.state,
		CurrentIndex:     e.current,
		QuestionCount:    len(e.questions),
		RemainingSeconds: e.remaining,
		ElapsedSeconds:   e.quiz.TimeLimitSeconds() - e.remaining,
		Clock:            FormatClock(e.remaining),
		TimeLow:          e.quiz.TimeLimit > 0 && e.state != Submitted && e.remaining <= lowTimeThreshold,
		Selections:       e.answersLocked(),
	}

	if len(e.questions) > 0 {
		q := e.questions[e.current]
		qv := &QuestionView{
			ID:      q.ID,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
			Media:   q.Media,
			Points:  q.Points,
		}
		if e.state == Submitted {
			qv.Explanation = q.Explanation
		}
		view.Question = qv
		view.Progress = (e.current + 1) * 100 / len(e.questions)
	}

	if e.attempt != nil {
		attempt := *e.attempt
		view.Attempt = &attempt
	}
	return view
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
