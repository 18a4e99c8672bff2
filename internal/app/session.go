package app

import (
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/engine"
)

// Event types delivered to subscribers.
const (
	EventState     = "state"
	EventCompleted = "completed"
)

// Event is a change notification for one attempt.
type Event struct {
	Type   string                `json:"type"`
	View   *engine.View          `json:"view,omitempty"`
	Result *domain.AttemptResult `json:"result,omitempty"`
}

// Session is a live attempt: the engine plus whoever watches it.
type Session struct {
	id        string
	userID    string
	quiz      domain.Quiz
	createdAt time.Time
	engine    *engine.Engine

	releaseOnce sync.Once

	mu          sync.Mutex
	closed      bool
	subscribers map[chan Event]struct{}
}

func newSession(id, userID string, quiz domain.Quiz, now func() time.Time) *Session {
	return &Session{
		id:          id,
		userID:      userID,
		quiz:        quiz,
		createdAt:   now(),
		subscribers: make(map[chan Event]struct{}),
	}
}

// ID returns the attempt id.
func (s *Session) ID() string {
	return s.id
}

// QuizID returns the quiz being attempted.
func (s *Session) QuizID() string {
	return s.quiz.ID
}

// UserID returns the participant.
func (s *Session) UserID() string {
	return s.userID
}

// CreatedAt reports when the attempt was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// TimeLimit is the countdown length of the attempt; zero when untimed.
func (s *Session) TimeLimit() time.Duration {
	return time.Duration(s.quiz.TimeLimitSeconds()) * time.Second
}

// Finished reports whether the attempt was submitted.
func (s *Session) Finished() bool {
	return s.engine.State() == engine.Submitted
}

func (s *Session) publishState(view engine.View) {
	s.broadcast(Event{Type: EventState, View: &view})
}

func (s *Session) publishCompleted(result domain.AttemptResult) {
	s.broadcast(Event{Type: EventCompleted, Result: &result})
}

func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	// Engine lock first, session lock second: the order broadcast uses.
	s.engine.Observe(func(view engine.View) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			close(ch)
			return
		}
		ch <- Event{Type: EventState, View: &view}
		s.subscribers[ch] = struct{}{}
	})

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
			continue
		default:
		}
		// Slow subscriber: drop its oldest pending event so the newest fits.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
