package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/config"
	"github.com/NitrousOX/DRS---projekat/internal/infra/memory"
	"github.com/NitrousOX/DRS---projekat/internal/infra/postgres"
	"github.com/NitrousOX/DRS---projekat/internal/infra/security"
	transport "github.com/NitrousOX/DRS---projekat/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewQuizCmd starts the quiz lifecycle and scoring service.
func NewQuizCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quiz",
		Short: "Start the quiz service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuiz(cmd.Context(), *configPath, *port)
		},
	}
}

func runQuiz(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		quizzes app.QuizRepository
		results app.ResultRepository
	)
	if cfg.Postgres.QuizzesDSN != "" {
		if err := migrateTarget(ctx, log, cfg.Postgres.QuizzesDSN, targetQuizzes); err != nil {
			return err
		}
		db := postgres.OpenBun(cfg.Postgres.QuizzesDSN)
		defer db.Close()
		quizzes = postgres.NewQuizRepository(db)
		results = postgres.NewResultRepository(db)
	} else {
		repo := memory.NewQuizRepository()
		quizzes, results = repo, repo
	}

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, config.Duration(cfg.Auth.TokenTTL, time.Hour))
	service := app.NewQuizService(quizzes, results, log.Named("quizzes"))
	router := transport.NewQuizRouter(transport.NewQuizHandler(service), transport.VerifyOnly{Tokens: tokens}, log)

	return serve(ctx, log, "quiz service", pickPort(portFlag, cfg.Server.QuizPort, "5001"), router)
}
