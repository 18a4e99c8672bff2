package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Engines and their countdowns live in this process; Redis only carries a
// liveness marker per attempt so other instances and operators can see which
// attempts are open, and which user holds them.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

type sessionMarker struct {
	QuizID   string    `json:"quizId"`
	UserID   string    `json:"userId"`
	OpenedAt time.Time `json:"openedAt"`
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	marker, _ := json.Marshal(sessionMarker{
		QuizID:   session.QuizID(),
		UserID:   session.UserID(),
		OpenedAt: session.CreatedAt(),
	})
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), sessionKey(session.ID()), marker, s.markerTTL(session)).Err(); err != nil {
		s.log.Warn("mark attempt session failed", zap.String("attempt_id", session.ID()), zap.Error(err))
	}
}

// Touch extends the liveness marker of a session that is resumed.
func (s *SessionStore) Touch(session *app.Session) {
	if err := s.client.Expire(context.Background(), sessionKey(session.ID()), s.markerTTL(session)).Err(); err != nil {
		s.log.Warn("refresh attempt session failed", zap.String("attempt_id", session.ID()), zap.Error(err))
	}
}

// markerTTL covers the whole countdown plus the configured idle ttl.
func (s *SessionStore) markerTTL(session *app.Session) time.Duration {
	return session.TimeLimit() + s.ttl
}

func (s *SessionStore) Get(attemptID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[attemptID]
	return session, ok
}

func (s *SessionStore) Delete(attemptID string) {
	s.mu.Lock()
	delete(s.sessions, attemptID)
	s.mu.Unlock()

	if err := s.client.Del(context.Background(), sessionKey(attemptID)).Err(); err != nil {
		s.log.Warn("clear attempt session failed", zap.String("attempt_id", attemptID), zap.Error(err))
	}
}

func sessionKey(attemptID string) string {
	return "quiz:attempt:" + attemptID
}
