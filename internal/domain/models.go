package domain

import "time"

// QuestionType selects how answers are collected and scored.
type QuestionType string

const (
	SingleSelect QuestionType = "single-select"
	MultiSelect  QuestionType = "multi-select"
)

// Question models a choice question; CorrectAnswers holds option indices.
type Question struct {
	ID             string       `json:"id" yaml:"id" validate:"required"`
	Type           QuestionType `json:"type" yaml:"type" validate:"oneof=single-select multi-select"`
	Prompt         string       `json:"prompt" yaml:"prompt" validate:"required"`
	Options        []string     `json:"options" yaml:"options" validate:"min=1"`
	CorrectAnswers []int        `json:"correctAnswers" yaml:"correctAnswers" validate:"min=1,dive,min=0"`
	Explanation    string       `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Media          string       `json:"media,omitempty" yaml:"media,omitempty"`
	Points         int          `json:"points" yaml:"points" validate:"gt=0"`
}

// Quiz is an immutable quiz definition.
type Quiz struct {
	ID                 string     `json:"id" yaml:"id" validate:"required"`
	CourseID           string     `json:"courseId,omitempty" yaml:"courseId,omitempty"`
	Title              string     `json:"title" yaml:"title"`
	Description        string     `json:"description,omitempty" yaml:"description,omitempty"`
	TimeLimit          int        `json:"timeLimit" yaml:"timeLimit" validate:"gte=0"` // minutes
	MaxAttempts        int        `json:"maxAttempts" yaml:"maxAttempts" validate:"gte=0"`
	PassingScore       int        `json:"passingScore" yaml:"passingScore" validate:"gte=0,lte=100"`
	RandomizeQuestions bool       `json:"randomizeQuestions" yaml:"randomizeQuestions"`
	Questions          []Question `json:"questions" yaml:"questions" validate:"min=1,dive"`
	CreatedAt          time.Time  `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// TimeLimitSeconds is the full countdown budget of an attempt.
func (q Quiz) TimeLimitSeconds() int {
	return q.TimeLimit * 60
}

// QuizSummary is the public view of a quiz without answers.
type QuizSummary struct {
	ID            string `json:"id"`
	CourseID      string `json:"courseId,omitempty"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"questionCount"`
	TimeLimit     int    `json:"timeLimit"`
	MaxAttempts   int    `json:"maxAttempts"`
	PassingScore  int    `json:"passingScore"`
}

// Summary strips the quiz down to what can be shown before an attempt.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		CourseID:      q.CourseID,
		Title:         q.Title,
		Description:   q.Description,
		QuestionCount: len(q.Questions),
		TimeLimit:     q.TimeLimit,
		MaxAttempts:   q.MaxAttempts,
		PassingScore:  q.PassingScore,
	}
}

// QuizAttempt is the record produced once an attempt is submitted.
type QuizAttempt struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	QuizID        string           `json:"quizId"`
	Answers       map[string][]int `json:"answers"`
	Score         int              `json:"score"`
	TimeSpent     int              `json:"timeSpent"` // seconds
	AutoSubmitted bool             `json:"autoSubmitted"`
	CompletedAt   time.Time        `json:"completedAt"`
}

// AttemptResult pairs a finished attempt with its pass/fail outcome.
type AttemptResult struct {
	Attempt      QuizAttempt `json:"attempt"`
	PassingScore int         `json:"passingScore"`
	Passed       bool        `json:"passed"`
}

// NewAttemptResult classifies an attempt against the quiz passing score.
func NewAttemptResult(quiz Quiz, attempt QuizAttempt) AttemptResult {
	return AttemptResult{
		Attempt:      attempt,
		PassingScore: quiz.PassingScore,
		Passed:       attempt.Score >= quiz.PassingScore,
	}
}
