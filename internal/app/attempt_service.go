package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/engine"
	"quiz-attempt-service/internal/metrics"
)

// SessionRepository abstracts where live attempt sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(attemptID string) (*Session, bool)
	Delete(attemptID string)
}

// SessionToucher is implemented by session repositories that expire entries
// and need a refresh when an attempt is resumed.
type SessionToucher interface {
	Touch(session *Session)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptRecorder persists finished attempts.
type AttemptRecorder interface {
	SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	ListAttempts(ctx context.Context, quizID, userID string) ([]domain.QuizAttempt, error)
	CountAttempts(ctx context.Context, quizID, userID string) (int, error)
}

// Option customizes an AttemptService.
type Option func(*AttemptService)

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *AttemptService) { s.now = now }
}

// WithTicker overrides the countdown ticker used by new attempts.
func WithTicker(newTicker engine.TickerFunc) Option {
	return func(s *AttemptService) { s.newTicker = newTicker }
}

// WithIDGenerator overrides attempt id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *AttemptService) { s.newID = newID }
}

// WithRand fixes the source used to shuffle randomized quizzes. rand.Rand is
// not safe for concurrent use, so this is meant for tests.
func WithRand(rnd *rand.Rand) Option {
	return func(s *AttemptService) { s.rnd = rnd }
}

// AttemptService contains the quiz attempt use cases.
type AttemptService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	attempts AttemptRecorder
	log      *zap.Logger

	now       func() time.Time
	newTicker engine.TickerFunc
	newID     func() string
	rnd       *rand.Rand

	// open counts live attempts per quiz and user; they hold a slot against
	// maxAttempts until they are recorded or abandoned.
	mu   sync.Mutex
	open map[string]int
}

func NewAttemptService(sessions SessionRepository, quizzes QuizRepository, attempts AttemptRecorder, log *zap.Logger, opts ...Option) *AttemptService {
	s := &AttemptService{
		sessions:  sessions,
		quizzes:   quizzes,
		attempts:  attempts,
		log:       log,
		now:       time.Now,
		newTicker: engine.NewStdTicker,
		newID:     uuid.NewString,
		open:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quiz returns the public summary of a quiz.
func (s *AttemptService) Quiz(ctx context.Context, quizID string) (domain.QuizSummary, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	return quiz.Summary(), nil
}

// Begin opens a new attempt of quizID for userID. The attempt is not started.
func (s *AttemptService) Begin(ctx context.Context, quizID, userID string) (engine.View, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return engine.View{}, domain.ErrMissingUser
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return engine.View{}, err
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return engine.View{}, err
	}

	if err := s.reserve(ctx, quiz, userID); err != nil {
		return engine.View{}, err
	}

	session := newSession(s.newID(), userID, quiz, s.now)
	session.engine = engine.New(quiz, engine.Options{
		AttemptID:  session.id,
		UserID:     userID,
		Now:        s.now,
		NewTicker:  s.newTicker,
		Rand:       s.rnd,
		OnChange:   session.publishState,
		OnComplete: s.completeFunc(session),
	})
	s.sessions.Put(session)

	metrics.AttemptsBegun.Inc()
	s.log.Info("attempt opened",
		zap.String("attempt_id", session.id),
		zap.String("quiz_id", quiz.ID),
		zap.String("user_id", userID),
	)
	return session.engine.View(), nil
}

// Start starts or resumes the attempt countdown.
func (s *AttemptService) Start(_ context.Context, attemptID string) (engine.View, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return engine.View{}, err
	}
	view := session.engine.Start()
	if toucher, ok := s.sessions.(SessionToucher); ok {
		toucher.Touch(session)
	}
	return view, nil
}

// Pause freezes the attempt countdown.
func (s *AttemptService) Pause(_ context.Context, attemptID string) (engine.View, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return engine.View{}, err
	}
	return session.engine.Pause(), nil
}

// SelectAnswer records an option choice on a running attempt.
func (s *AttemptService) SelectAnswer(_ context.Context, attemptID, questionID string, optionIndex int) (engine.View, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return engine.View{}, err
	}
	return session.engine.SelectAnswer(questionID, optionIndex), nil
}

// Advance moves the attempt to the next question.
func (s *AttemptService) Advance(_ context.Context, attemptID string) (engine.View, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return engine.View{}, err
	}
	return session.engine.Advance(), nil
}

// Retreat moves the attempt to the previous question.
func (s *AttemptService) Retreat(_ context.Context, attemptID string) (engine.View, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return engine.View{}, err
	}
	return session.engine.Retreat(), nil
}

// Submit finalizes the attempt. Submitting a finished attempt returns the
// same result again without recording anything; the boolean is false
// while the attempt has not been started.
func (s *AttemptService) Submit(_ context.Context, attemptID string) (domain.AttemptResult, bool, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.AttemptResult{}, false, err
	}
	session.engine.Submit()
	attempt, ok := session.engine.Attempt()
	if !ok {
		return domain.AttemptResult{}, false, nil
	}
	return domain.NewAttemptResult(session.quiz, attempt), true, nil
}

// View returns the current snapshot of an attempt.
func (s *AttemptService) View(_ context.Context, attemptID string) (engine.View, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return engine.View{}, err
	}
	return session.engine.View(), nil
}

// Subscribe returns a channel that receives attempt events.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *AttemptService) Subscribe(_ context.Context, attemptID string) (<-chan Event, func(), error) {
	session, err := s.session(attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Close drops the live session. An unfinished attempt is paused and discarded.
func (s *AttemptService) Close(_ context.Context, attemptID string) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	// A paused engine can no longer submit itself; a submitted one gives its
	// slot back once the attempt is recorded.
	if view := session.engine.Pause(); view.State != engine.Submitted {
		metrics.AttemptsAbandoned.Inc()
		s.log.Info("attempt abandoned", zap.String("attempt_id", attemptID))
		s.release(session)
	}
	session.closeSubscribers()
	s.sessions.Delete(attemptID)
}

// Attempts lists the finished attempts of a user for a quiz.
func (s *AttemptService) Attempts(ctx context.Context, quizID, userID string) ([]domain.QuizAttempt, error) {
	return s.attempts.ListAttempts(ctx, quizID, userID)
}

// reserve claims one of the user's attempts at quiz. Recorded attempts and
// attempts still open both count.
func (s *AttemptService) reserve(ctx context.Context, quiz domain.Quiz, userID string) error {
	key := openKey(quiz.ID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if quiz.MaxAttempts > 0 {
		used, err := s.attempts.CountAttempts(ctx, quiz.ID, userID)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		if used+s.open[key] >= quiz.MaxAttempts {
			return domain.ErrMaxAttemptsReached
		}
	}
	s.open[key]++
	return nil
}

// release gives back the slot held by session. It runs once per session:
// after the attempt is recorded, or when it is closed unfinished.
func (s *AttemptService) release(session *Session) {
	session.releaseOnce.Do(func() {
		key := openKey(session.quiz.ID, session.userID)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.open[key] <= 1 {
			delete(s.open, key)
			return
		}
		s.open[key]--
	})
}

func openKey(quizID, userID string) string {
	return quizID + "\x00" + userID
}

func (s *AttemptService) session(attemptID string) (*Session, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// completeFunc persists and announces a finished attempt. The engine calls it
// once, either from a manual submit or from the countdown goroutine.
func (s *AttemptService) completeFunc(session *Session) func(domain.QuizAttempt) {
	return func(attempt domain.QuizAttempt) {
		result := domain.NewAttemptResult(session.quiz, attempt)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
			s.log.Error("persist attempt failed",
				zap.String("attempt_id", attempt.ID),
				zap.Error(err),
			)
		}
		s.release(session)

		metrics.ObserveCompletion(result)
		s.log.Info("attempt completed",
			zap.String("attempt_id", attempt.ID),
			zap.String("quiz_id", attempt.QuizID),
			zap.String("user_id", attempt.UserID),
			zap.Int("score", attempt.Score),
			zap.Int("time_spent", attempt.TimeSpent),
			zap.Bool("auto_submitted", attempt.AutoSubmitted),
			zap.Bool("passed", result.Passed),
		)
		session.publishCompleted(result)
	}
}
