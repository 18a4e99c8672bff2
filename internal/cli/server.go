package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	infraredis "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/logging"
	"quiz-attempt-service/internal/metrics"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runServer(cmd.Context(), cfg, *port, log)
		},
	}
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func runServer(ctx context.Context, cfg config.Config, portFlag string, log *zap.Logger) error {
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	loader, closeLoader, err := quizLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLoader()

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL, log)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, redisTTL, log)
	} else {
		store = memory.NewSessionStore()
	}

	var attempts app.AttemptRecorder
	switch {
	case cfg.Postgres.URL != "":
		db := postgres.OpenBun(cfg.Postgres.URL)
		defer db.Close()
		attempts = postgres.NewAttemptStore(db)
	case redisClient != nil:
		attempts = infraredis.NewAttemptStore(redisClient, config.TTLDuration(cfg.Redis.AttemptTTL, 0))
	default:
		attempts = memory.NewAttemptStore()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	service := app.NewAttemptService(store, quizRepo, attempts, log)
	router := transport.NewRouter(service, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), log)

	// No WriteTimeout: websocket connections stay open for the whole attempt.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-serveErr:
		log.Error("server failed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// quizLoader picks the quiz source: Postgres when configured, then a YAML
// catalog, then the built-in sample quiz.
func quizLoader(ctx context.Context, cfg config.Config) (memory.QuizLoader, func(), error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewQuizStore(pool), pool.Close, nil
	}
	if cfg.Quiz.File != "" {
		catalog, err := memory.LoadCatalog(cfg.Quiz.File)
		if err != nil {
			return nil, nil, err
		}
		return catalog, func() {}, nil
	}
	return memory.NewStaticQuizLoader(sampleQuizzes()), func() {}, nil
}

// sampleQuizzes provides a minimal quiz for local runs without a catalog.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:           "quiz-1",
			Title:        "Warm-up",
			TimeLimit:    5,
			PassingScore: 70,
			Questions: []domain.Question{
				{
					ID:             "q1",
					Type:           domain.SingleSelect,
					Prompt:         "What is 2 + 2?",
					Options:        []string{"3", "4", "5"},
					CorrectAnswers: []int{1},
					Points:         10,
				},
				{
					ID:             "q2",
					Type:           domain.MultiSelect,
					Prompt:         "Which of these are prime?",
					Options:        []string{"2", "3", "4", "5"},
					CorrectAnswers: []int{0, 1, 3},
					Explanation:    "4 is divisible by 2.",
					Points:         20,
				},
			},
		},
	}
}
