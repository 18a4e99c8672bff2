package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an attempt has no live session.
	ErrSessionNotFound = errors.New("attempt session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates the quiz definition failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrMaxAttemptsReached is returned when a user has used all attempts for a quiz.
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	// ErrMissingUser indicates an attempt was requested without a user id.
	ErrMissingUser = errors.New("user id is required")
)
