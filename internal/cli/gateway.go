package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/config"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/infra/events"
	"github.com/NitrousOX/DRS---projekat/internal/infra/mail"
	"github.com/NitrousOX/DRS---projekat/internal/infra/memory"
	"github.com/NitrousOX/DRS---projekat/internal/infra/postgres"
	"github.com/NitrousOX/DRS---projekat/internal/infra/quizclient"
	redisstore "github.com/NitrousOX/DRS---projekat/internal/infra/redis"
	"github.com/NitrousOX/DRS---projekat/internal/infra/report"
	"github.com/NitrousOX/DRS---projekat/internal/infra/security"
	"github.com/NitrousOX/DRS---projekat/internal/infra/storage"
	transport "github.com/NitrousOX/DRS---projekat/internal/transport/http"
	"github.com/NitrousOX/DRS---projekat/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// NewGatewayCmd starts the public API: accounts, quiz proxy, play and realtime.
func NewGatewayCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the account gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.Context(), *configPath, *port)
		},
	}
}

func runGateway(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, config.Duration(cfg.Auth.TokenTTL, time.Hour))
	redisClient := newRedisClient(cfg)

	var users app.UserRepository = memory.NewUserRepository()
	if cfg.Postgres.AccountsDSN != "" {
		if err := migrateTarget(ctx, log, cfg.Postgres.AccountsDSN, targetAccounts); err != nil {
			return err
		}
		pool, err := postgres.ConnectPool(ctx, cfg.Postgres.AccountsDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		users = postgres.NewUserRepository(pool)
	}

	var revocations app.RevocationStore = memory.NewRevocationStore()
	var attempts app.AttemptStore = memory.NewAttemptStore()
	if redisClient != nil {
		defer redisClient.Close()
		revocations = redisstore.NewRevocationStore(redisClient)
		attempts = redisstore.NewAttemptStore(redisClient)
	}

	avatars, uploadDir, err := newAvatarStore(cfg)
	if err != nil {
		return err
	}

	accounts := app.NewAccountService(users, security.NewBcryptHasher(bcrypt.DefaultCost), tokens, app.AccountOptions{
		Policy: domain.LockoutPolicy{
			MaxFailedLogins: cfg.Auth.MaxFailedLogins,
			LockFor:         config.Duration(cfg.Auth.LockTime, time.Minute),
		},
		PasswordMinLength: cfg.Auth.PasswordMinLength,
		Revocations:       revocations,
		Avatars:           avatars,
		Logger:            log.Named("accounts"),
	})
	if cfg.Postgres.AccountsDSN == "" {
		// In-memory accounts start empty on every boot.
		if _, _, err := accounts.EnsureAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
			return err
		}
	}

	client := quizclient.New(cfg.Server.QuizServiceURL, 10*time.Second)
	cacheTTL := config.Duration(cfg.Play.QuizCacheTTL, 10*time.Minute)
	var cache transport.QuizCache = memory.NewQuizCache(client, cacheTTL)
	if redisClient != nil {
		cache = redisstore.NewQuizCache(redisClient, client, cacheTTL)
	}

	var mailer app.Mailer = mail.NewLogMailer(log.Named("mail"))
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}

	var publisher app.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
	}

	pool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, config.Duration(cfg.Worker.JobTimeout, 30*time.Second), log.Named("worker"))
	hub := transport.NewHub(accounts, log.Named("realtime"))
	play := app.NewGatewayService(cache, client, attempts, pool, tokens, app.GatewayOptions{
		AttemptTTL:  config.Duration(cfg.Play.AttemptTTL, 2*time.Hour),
		OutcomeTTL:  config.Duration(cfg.Play.OutcomeTTL, 24*time.Hour),
		Broadcaster: hub,
		Mailer:      mailer,
		Reports:     report.NewPDFRenderer(),
		Events:      publisher,
		Logger:      log.Named("play"),
	})

	router := transport.NewGatewayRouter(transport.GatewayConfig{
		Accounts:       transport.NewAccountHandler(accounts, cfg.Server.CookieSecure),
		Gateway:        transport.NewGatewayHandler(client, cache, accounts, play, log.Named("gateway")),
		Hub:            hub,
		Auth:           accounts,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		UploadDir:      uploadDir,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error {
		return serve(gctx, log, "gateway", pickPort(portFlag, cfg.Server.GatewayPort, "5000"), router)
	})
	return g.Wait()
}

func newAvatarStore(cfg config.Config) (app.AvatarStore, string, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		store, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, cfg.Storage.LocalDir, nil
	case "s3":
		store, err := storage.NewS3Store(storage.S3Config{
			Bucket:        cfg.Storage.S3.Bucket,
			Region:        cfg.Storage.S3.Region,
			Endpoint:      cfg.Storage.S3.Endpoint,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	default:
		return nil, "", fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
