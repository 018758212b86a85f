package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/garnizeh/qaforum/internal/forum"
)

// DefaultJWTSecret is only acceptable when FORUM_ENV is development.
const DefaultJWTSecret = "supersecretkey"

type Config struct {
	Addr           string         `yaml:"addr"`
	JWTSecret      string         `yaml:"jwt_secret"`
	APITimeout     time.Duration  `yaml:"timeout"`
	DatabasePath   string         `yaml:"database_path"`
	TokenDuration  time.Duration  `yaml:"token_duration"`
	LogLevel       string         `yaml:"log_level"`
	MigrateOnStart *bool          `yaml:"migrate_on_start,omitempty"`
	Forum          ForumConfig    `yaml:"forum"`
	Identity       IdentityConfig `yaml:"identity"`
	Jobs           JobsConfig     `yaml:"jobs"`
}

type ForumConfig struct {
	// ResolvedAnswerDelete is one of keep, forbid or unresolve.
	ResolvedAnswerDelete string `yaml:"resolved_answer_delete"`
}

type IdentityConfig struct {
	InvitationDays int `yaml:"invitation_days"`
	BcryptCost     int `yaml:"bcrypt_cost"`
}

type JobsConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Retention is how long done jobs are kept.
	Retention           time.Duration `yaml:"retention"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	tokenDuration := 1 * time.Hour

	cfg := &Config{
		Addr:          getEnv("FORUM_ADDR", ":8080"),
		JWTSecret:     getEnv("FORUM_JWT_SECRET", DefaultJWTSecret),
		APITimeout:    apiTimeout,
		DatabasePath:  getEnv("FORUM_DATABASE_PATH", "qaforum.db"),
		TokenDuration: tokenDuration,
		LogLevel:      getEnv("FORUM_LOG_LEVEL", "info"),
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate checks the configuration and fills defaults for optional sections.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == DefaultJWTSecret && !IsDevelopment() {
		errs = append(errs, errors.New("jwt_secret uses the insecure default; set FORUM_JWT_SECRET"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}
	if _, err := forum.ParseResolvedAnswerPolicy(c.Forum.ResolvedAnswerDelete); err != nil {
		errs = append(errs, fmt.Errorf("forum.resolved_answer_delete: %w", err))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.MigrateOnStart == nil {
		yes := true
		c.MigrateOnStart = &yes
	}
	if c.Identity.InvitationDays <= 0 {
		c.Identity.InvitationDays = 7
	}
	if c.Identity.BcryptCost == 0 {
		c.Identity.BcryptCost = bcrypt.DefaultCost
	} else if c.Identity.BcryptCost < bcrypt.MinCost || c.Identity.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("identity.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = time.Second
	}
	if c.Jobs.Retention <= 0 {
		c.Jobs.Retention = 7 * 24 * time.Hour
	}
	if c.Jobs.MaintenanceInterval <= 0 {
		c.Jobs.MaintenanceInterval = time.Hour
	}

	return errors.Join(errs...)
}

// ResolvedAnswerPolicy returns the parsed forum policy. Call Validate first.
func (c *Config) ResolvedAnswerPolicy() forum.ResolvedAnswerPolicy {
	p, _ := forum.ParseResolvedAnswerPolicy(c.Forum.ResolvedAnswerDelete)
	return p
}

// SlogLevel parses LogLevel; an empty value means info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(c.LogLevel) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// IsDevelopment reports whether FORUM_ENV selects the development profile.
func IsDevelopment() bool {
	env := strings.ToLower(os.Getenv("FORUM_ENV"))
	return env == "development" || env == "dev"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
