package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
)

func TestSampleQuizzesAreValid(t *testing.T) {
	for id, quiz := range sampleQuizzes() {
		if err := domain.ValidateQuiz(quiz); err != nil {
			t.Fatalf("sample quiz %s invalid: %v", id, err)
		}
	}
}

func TestQuizLoaderPrefersCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	content := `quizzes:
  - id: geo
    title: Capitals
    timeLimit: 2
    questions:
      - id: q1
        type: single-select
        prompt: Capital of France?
        options: [Paris, Lyon]
        correctAnswers: [0]
        points: 1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	var cfg config.Config
	cfg.Quiz.File = path
	loader, closeLoader, err := quizLoader(context.Background(), cfg)
	if err != nil {
		t.Fatalf("quiz loader: %v", err)
	}
	defer closeLoader()

	if _, err := loader.LoadQuiz(context.Background(), "geo"); err != nil {
		t.Fatalf("expected catalog quiz: %v", err)
	}
	if _, err := loader.LoadQuiz(context.Background(), "quiz-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("sample quiz must not be served alongside a catalog, got %v", err)
	}
}

func TestCommandsRequirePostgres(t *testing.T) {
	var cfg config.Config
	cfg.Quiz.File = "quizzes.yaml"
	if err := runMigrations(context.Background(), cfg, zap.NewNop()); !errors.Is(err, errNoPostgres) {
		t.Fatalf("expected missing postgres error, got %v", err)
	}
	if err := runSeed(context.Background(), cfg, zap.NewNop()); !errors.Is(err, errNoPostgres) {
		t.Fatalf("expected missing postgres error, got %v", err)
	}
}
