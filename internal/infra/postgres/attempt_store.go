package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-attempt-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID            string           `bun:"id,pk"`
	QuizID        string           `bun:"quiz_id,notnull"`
	UserID        string           `bun:"user_id,notnull"`
	Answers       map[string][]int `bun:"answers,type:jsonb,notnull"`
	Score         int              `bun:"score,notnull"`
	TimeSpent     int              `bun:"time_spent,notnull"`
	AutoSubmitted bool             `bun:"auto_submitted,notnull"`
	CompletedAt   time.Time        `bun:"completed_at,notnull"`
}

func toRow(a domain.QuizAttempt) *attemptRow {
	answers := a.Answers
	if answers == nil {
		answers = map[string][]int{}
	}
	return &attemptRow{
		ID:            a.ID,
		QuizID:        a.QuizID,
		UserID:        a.UserID,
		Answers:       answers,
		Score:         a.Score,
		TimeSpent:     a.TimeSpent,
		AutoSubmitted: a.AutoSubmitted,
		CompletedAt:   a.CompletedAt.UTC(),
	}
}

func (r attemptRow) toDomain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:            r.ID,
		QuizID:        r.QuizID,
		UserID:        r.UserID,
		Answers:       r.Answers,
		Score:         r.Score,
		TimeSpent:     r.TimeSpent,
		AutoSubmitted: r.AutoSubmitted,
		CompletedAt:   r.CompletedAt,
	}
}

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// AttemptStore persists finished attempts in the quiz_attempts table.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// SaveAttempt inserts the attempt; saving the same attempt id twice keeps the first row.
func (s *AttemptStore) SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	_, err := s.db.NewInsert().
		Model(toRow(attempt)).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", attempt.ID, err)
	}
	return nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, quizID, userID string) ([]domain.QuizAttempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Order("completed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attempts := make([]domain.QuizAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.toDomain())
	}
	return attempts, nil
}

func (s *AttemptStore) CountAttempts(ctx context.Context, quizID, userID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}
