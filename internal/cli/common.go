package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/config"
	"github.com/NitrousOX/DRS---projekat/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	log, err := logger.New(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		return cfg, nil, err
	}
	if cfg.Log.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return cfg, log, nil
}

func pickPort(flag, configured, fallback string) string {
	if flag != "" {
		return flag
	}
	if configured != "" {
		return configured
	}
	return fallback
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// serve runs handler until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, log *zap.Logger, name, port string, handler http.Handler) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting "+name, zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down " + name)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
