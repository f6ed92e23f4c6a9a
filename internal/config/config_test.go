package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("auth:\n  jwt_secret: s3cret\n  lock_time: 2m\nworker:\n  concurrency: 8\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Worker.Concurrency != 8 {
		t.Fatalf("file values not applied: %+v", cfg.Auth)
	}
	if cfg.Auth.MaxFailedLogins != 3 || cfg.Worker.QueueSize != 64 {
		t.Fatalf("defaults lost: max=%d queue=%d", cfg.Auth.MaxFailedLogins, cfg.Worker.QueueSize)
	}
	if got := Duration(cfg.Auth.LockTime, time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m lock time, got %s", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.PasswordMinLength != 6 {
		t.Fatalf("expected default min length 6, got %d", cfg.Auth.PasswordMinLength)
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Hour); got != time.Hour {
		t.Fatalf("empty: got %s", got)
	}
	if got := Duration("soon", time.Hour); got != time.Hour {
		t.Fatalf("malformed: got %s", got)
	}
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	cfg := Default()
	env := map[string]string{"JWT_SECRET": "from-env", "REDIS_ADDR": ""}
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("empty env values must not override, got %q", cfg.Redis.Addr)
	}
}
