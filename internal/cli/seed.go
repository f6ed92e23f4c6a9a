package cli

import (
	"context"
	"errors"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/config"
	"github.com/NitrousOX/DRS---projekat/internal/infra/postgres"
	"github.com/NitrousOX/DRS---projekat/internal/infra/security"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// NewSeedAdminCmd creates the configured admin account when it does not exist.
func NewSeedAdminCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedAdmin(cmd.Context(), *configPath)
		},
	}
}

func runSeedAdmin(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	if cfg.Postgres.AccountsDSN == "" {
		return errors.New("postgres accounts_dsn not configured")
	}
	if err := migrateTarget(ctx, log, cfg.Postgres.AccountsDSN, targetAccounts); err != nil {
		return err
	}
	pool, err := postgres.ConnectPool(ctx, cfg.Postgres.AccountsDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, config.Duration(cfg.Auth.TokenTTL, time.Hour))
	accounts := app.NewAccountService(postgres.NewUserRepository(pool), security.NewBcryptHasher(bcrypt.DefaultCost), tokens, app.AccountOptions{Logger: log})
	user, created, err := accounts.EnsureAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info("admin created", zap.String("email", user.Email), zap.Int64("id", user.ID))
	} else {
		log.Info("admin already exists", zap.String("email", user.Email), zap.String("role", user.Role.Name()))
	}
	return nil
}
