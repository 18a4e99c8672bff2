package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore keeps finished attempts in memory, grouped by quiz and user.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey][]domain.QuizAttempt
}

type attemptKey struct {
	quizID string
	userID string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[attemptKey][]domain.QuizAttempt)}
}

func (s *AttemptStore) SaveAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	key := attemptKey{quizID: attempt.QuizID, userID: attempt.UserID}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts[key] {
		if existing.ID == attempt.ID {
			return nil
		}
	}
	s.attempts[key] = append(s.attempts[key], attempt)
	return nil
}

// ListAttempts returns attempts in completion order.
func (s *AttemptStore) ListAttempts(_ context.Context, quizID, userID string) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.attempts[attemptKey{quizID: quizID, userID: userID}]
	out := make([]domain.QuizAttempt, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *AttemptStore) CountAttempts(_ context.Context, quizID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts[attemptKey{quizID: quizID, userID: userID}]), nil
}
