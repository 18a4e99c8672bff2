package redis

import (
	"context"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestAttemptStoreRecordsHistory(t *testing.T) {
	mr := startMiniredis(t)
	store := NewAttemptStore(newClient(mr), time.Hour)
	ctx := context.Background()
	completed := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

	first := domain.QuizAttempt{ID: "a1", QuizID: "quiz-1", UserID: "u1", Answers: map[string][]int{"q1": {1}}, Score: 100, TimeSpent: 42, CompletedAt: completed}
	if err := store.SaveAttempt(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveAttempt(ctx, first); err != nil {
		t.Fatalf("save duplicate: %v", err)
	}
	if err := store.SaveAttempt(ctx, domain.QuizAttempt{ID: "a2", QuizID: "quiz-1", UserID: "u1", Score: 0, AutoSubmitted: true}); err != nil {
		t.Fatalf("save second: %v", err)
	}

	n, err := store.CountAttempts(ctx, "quiz-1", "u1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 attempts, got %d (%v)", n, err)
	}
	list, err := store.ListAttempts(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a1" || !list[1].AutoSubmitted {
		t.Fatalf("unexpected history %+v", list)
	}
	if !list[0].CompletedAt.Equal(completed) || list[0].Answers["q1"][0] != 1 {
		t.Fatalf("attempt fields not preserved: %+v", list[0])
	}
	if ttl := mr.TTL("quiz:quiz-1:user:u1:attempts"); ttl != time.Hour {
		t.Fatalf("expected history ttl 1h, got %v", ttl)
	}

	if n, _ := store.CountAttempts(ctx, "quiz-1", "u2"); n != 0 {
		t.Fatalf("expected no attempts for another user, got %d", n)
	}
}

func TestAttemptStoreFailedSaveCanBeRetried(t *testing.T) {
	mr := startMiniredis(t)
	store := NewAttemptStore(newClient(mr), 0)
	ctx := context.Background()
	attempt := domain.QuizAttempt{ID: "a1", QuizID: "quiz-1", UserID: "u1", Score: 80}

	// A value of the wrong type makes the append fail.
	if err := mr.Set("quiz:quiz-1:user:u1:attempts", "corrupt"); err != nil {
		t.Fatalf("seed corrupt key: %v", err)
	}
	if err := store.SaveAttempt(ctx, attempt); err == nil {
		t.Fatalf("expected save to fail")
	}
	if mr.Exists("quiz:quiz-1:user:u1:attempt-ids") {
		t.Fatalf("failed save must not mark the attempt as recorded")
	}

	mr.Del("quiz:quiz-1:user:u1:attempts")
	if err := store.SaveAttempt(ctx, attempt); err != nil {
		t.Fatalf("retry: %v", err)
	}
	list, err := store.ListAttempts(ctx, "quiz-1", "u1")
	if err != nil || len(list) != 1 || list[0].ID != "a1" {
		t.Fatalf("expected retried attempt in history, got %+v (%v)", list, err)
	}
	if ttl := mr.TTL("quiz:quiz-1:user:u1:attempts"); ttl != 0 {
		t.Fatalf("zero ttl must keep history, got %v", ttl)
	}
}
