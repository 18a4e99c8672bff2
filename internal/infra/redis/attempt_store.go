package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore records finished attempts in Redis:
//
//	SADD  quiz:{quizID}:user:{userID}:attempt-ids {attemptID}
//	RPUSH quiz:{quizID}:user:{userID}:attempts    <json>
//
// The id set makes repeated saves of the same attempt a no-op.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// saveAttemptScript appends an attempt unless its id is already recorded.
// SISMEMBER checks the id set's type before anything is written and RPUSH
// runs before SADD, so a failing call leaves both keys untouched.
var saveAttemptScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
	redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// NewAttemptStore keeps history for ttl after the latest attempt; zero keeps it forever.
func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}

	idsKey, listKey := attemptKeys(attempt.QuizID, attempt.UserID)
	err = saveAttemptScript.Run(ctx, s.client, []string{idsKey, listKey}, attempt.ID, data, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("store attempt %s: %w", attempt.ID, err)
	}
	return nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, quizID, userID string) ([]domain.QuizAttempt, error) {
	_, listKey := attemptKeys(quizID, userID)
	raw, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attempts := make([]domain.QuizAttempt, 0, len(raw))
	for _, item := range raw {
		var attempt domain.QuizAttempt
		if err := json.Unmarshal([]byte(item), &attempt); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func (s *AttemptStore) CountAttempts(ctx context.Context, quizID, userID string) (int, error) {
	_, listKey := attemptKeys(quizID, userID)
	n, err := s.client.LLen(ctx, listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return int(n), nil
}

func attemptKeys(quizID, userID string) (ids, list string) {
	prefix := "quiz:" + quizID + ":user:" + userID
	return prefix + ":attempt-ids", prefix + ":attempts"
}
