package cli

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
)

// NewSeedCmd copies the YAML quiz catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quizzes from a YAML catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if file != "" {
				cfg.Quiz.File = file
			}
			return runSeed(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog to load (defaults to quiz.file)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}
	if cfg.Quiz.File == "" {
		return errors.New("no quiz catalog given")
	}

	catalog, err := memory.LoadCatalog(cfg.Quiz.File)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, cfg, log); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewQuizStore(pool)
	for _, quiz := range catalog.Quizzes() {
		if err := store.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		log.Info("quiz seeded", zap.String("quiz_id", quiz.ID), zap.Int("questions", len(quiz.Questions)))
	}
	return nil
}
