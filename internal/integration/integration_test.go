package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/postgres"
	pgmigrations "quiz-attempt-service/internal/infra/postgres/migrations"
	infraredis "quiz-attempt-service/internal/infra/redis"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	quizStore := postgres.NewQuizStore(pool)
	if err := quizStore.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	attempts := postgres.NewAttemptStore(db)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	log := zap.NewNop()
	quizRepo := infraredis.NewQuizRepository(redisClient, quizStore, 5*time.Minute, log)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute, log)
	service := app.NewAttemptService(sessionStore, quizRepo, attempts, log)

	view, err := service.Begin(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := service.Start(ctx, view.AttemptID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SelectAnswer(ctx, view.AttemptID, "q1", 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	result, started, err := service.Submit(ctx, view.AttemptID)
	if err != nil || !started {
		t.Fatalf("submit: started=%v err=%v", started, err)
	}
	if result.Attempt.Score != 100 || !result.Passed {
		t.Fatalf("expected a perfect passing attempt, got %+v", result)
	}
	service.Close(ctx, view.AttemptID)

	stored, err := service.Attempts(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != view.AttemptID || stored[0].Answers["q1"][0] != 1 {
		t.Fatalf("unexpected stored attempts %+v", stored)
	}

	if _, err := service.Begin(ctx, "quiz-1", "u1"); err != domain.ErrMaxAttemptsReached {
		t.Fatalf("expected max attempts error, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	db := postgres.OpenBun(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Arithmetic",
		TimeLimit:    5,
		MaxAttempts:  1,
		PassingScore: 50,
		Questions: []domain.Question{
			{
				ID:             "q1",
				Type:           domain.SingleSelect,
				Prompt:         "What is 2 + 2?",
				Options:        []string{"3", "4", "5"},
				CorrectAnswers: []int{1},
				Points:         1,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
