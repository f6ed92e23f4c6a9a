package cli

import (
	"context"
	"fmt"

	"github.com/NitrousOX/DRS---projekat/internal/infra/postgres"
	pgmigrations "github.com/NitrousOX/DRS---projekat/internal/infra/postgres/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	targetAccounts = "accounts"
	targetQuizzes  = "quizzes"
	targetAll      = "all"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, target)
		},
	}
	cmd.Flags().StringVar(&target, "target", targetAll, "database to migrate: accounts, quizzes or all")
	return cmd
}

func runMigrations(ctx context.Context, configPath, target string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	jobs := map[string]string{
		targetAccounts: cfg.Postgres.AccountsDSN,
		targetQuizzes:  cfg.Postgres.QuizzesDSN,
	}
	var names []string
	switch target {
	case targetAll:
		names = []string{targetAccounts, targetQuizzes}
	case targetAccounts, targetQuizzes:
		names = []string{target}
	default:
		return fmt.Errorf("unknown migration target %q", target)
	}
	for _, name := range names {
		if jobs[name] == "" {
			return fmt.Errorf("postgres %s_dsn not configured", name)
		}
		if err := migrateTarget(ctx, log, jobs[name], name); err != nil {
			return err
		}
	}
	return nil
}

func migrateTarget(ctx context.Context, log *zap.Logger, dsn, target string) error {
	set := pgmigrations.Accounts
	if target == targetQuizzes {
		set = pgmigrations.Quizzes
	}
	db := postgres.OpenBun(dsn)
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db, set)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", target, err)
	}
	log.Info("migrations applied", zap.String("target", target), zap.Strings("applied", applied))
	return nil
}
