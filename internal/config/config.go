package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		GatewayPort    string   `yaml:"gateway_port"`
		QuizPort       string   `yaml:"quiz_port"`
		QuizServiceURL string   `yaml:"quiz_service_url"`
		CookieSecure   bool     `yaml:"cookie_secure"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
		Env   string `yaml:"env"`
	} `yaml:"log"`
	Postgres struct {
		AccountsDSN string `yaml:"accounts_dsn"`
		QuizzesDSN  string `yaml:"quizzes_dsn"`
	} `yaml:"postgres"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		TokenTTL          string `yaml:"token_ttl"`
		MaxFailedLogins   int    `yaml:"max_failed_logins"`
		LockTime          string `yaml:"lock_time"`
		PasswordMinLength int    `yaml:"password_min_length"`
	} `yaml:"auth"`
	Play struct {
		AttemptTTL   string `yaml:"attempt_ttl"`
		QuizCacheTTL string `yaml:"quiz_cache_ttl"`
		OutcomeTTL   string `yaml:"outcome_ttl"`
	} `yaml:"play"`
	Worker struct {
		Concurrency int    `yaml:"concurrency"`
		QueueSize   int    `yaml:"queue_size"`
		JobTimeout  string `yaml:"job_timeout"`
	} `yaml:"worker"`
	Mail struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"mail"`
	Storage struct {
		Driver        string `yaml:"driver"`
		LocalDir      string `yaml:"local_dir"`
		PublicBaseURL string `yaml:"public_base_url"`
		S3            struct {
			Bucket   string `yaml:"bucket"`
			Region   string `yaml:"region"`
			Endpoint string `yaml:"endpoint"`
		} `yaml:"s3"`
	} `yaml:"storage"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Seed struct {
		AdminEmail    string `yaml:"admin_email"`
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"seed"`
}

// Default returns the settings used when a key is absent from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.GatewayPort = "5000"
	cfg.Server.QuizPort = "5001"
	cfg.Server.QuizServiceURL = "http://localhost:5001"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Log.Level = "info"
	cfg.Log.Env = "development"
	cfg.Auth.JWTSecret = "dev-secret-change-me"
	cfg.Auth.TokenTTL = "1h"
	cfg.Auth.MaxFailedLogins = 3
	cfg.Auth.LockTime = "1m"
	cfg.Auth.PasswordMinLength = 6
	cfg.Play.AttemptTTL = "2h"
	cfg.Play.QuizCacheTTL = "10m"
	cfg.Play.OutcomeTTL = "24h"
	cfg.Worker.Concurrency = 4
	cfg.Worker.QueueSize = 64
	cfg.Worker.JobTimeout = "30s"
	cfg.Mail.Port = 587
	cfg.Mail.From = "no-reply@kviz.com"
	cfg.Storage.Driver = "local"
	cfg.Storage.LocalDir = "uploads"
	cfg.Storage.PublicBaseURL = "/uploads"
	cfg.Kafka.Topic = "kviz.events"
	cfg.Seed.AdminEmail = "admin@kviz.com"
	cfg.Seed.AdminPassword = "admin123"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// ApplyEnv overrides secrets and connection strings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("JWT_SECRET", &c.Auth.JWTSecret)
	set("ACCOUNTS_DATABASE_URL", &c.Postgres.AccountsDSN)
	set("QUIZZES_DATABASE_URL", &c.Postgres.QuizzesDSN)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("QUIZ_SERVICE_URL", &c.Server.QuizServiceURL)
	set("MAIL_PASSWORD", &c.Mail.Password)
}
