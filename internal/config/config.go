// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// UserIDs is a comma separated list of Telegram user IDs.
type UserIDs []int64

// UnmarshalText parses "1, 2,3" into a list, skipping empty items.
func (u *UserIDs) UnmarshalText(text []byte) error {
	var ids UserIDs
	for _, s := range strings.Split(string(text), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	*u = ids
	return nil
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	DatabasePath     string  `env:"DATABASE_PATH" envDefault:"./data/bot.db"`
	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`
	AllowedUsers     UserIDs `env:"ALLOWED_USERS"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"10"`
	SendPace     time.Duration `env:"SEND_PACE" envDefault:"1s"`
	SendBackoff  time.Duration `env:"SEND_BACKOFF" envDefault:"5s"`

	FeedDomain       string `env:"FEED_DOMAIN" envDefault:"upwork.com"`
	MaxSubscriptions int    `env:"MAX_SUBSCRIPTIONS" envDefault:"500"`
	SeenRetention    int    `env:"SEEN_RETENTION" envDefault:"10000"`
}

// Load reads configuration from environment variables. When ENV_FILE is
// set, values from that dotenv file are applied first and the process
// environment overrides them.
func Load() (*Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		return LoadFile(path)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a dotenv file merged with the process environment.
func LoadFile(path string) (*Config, error) {
	fileEnv, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %q: %w", path, err)
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if v != "" {
			fileEnv[k] = v
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: fileEnv}); err != nil {
		return nil, fmt.Errorf("parse env file %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}
	if c.SendPace < 0 || c.SendBackoff < 0 {
		return fmt.Errorf("SEND_PACE and SEND_BACKOFF must not be negative")
	}
	if c.MaxSubscriptions < 1 {
		return fmt.Errorf("MAX_SUBSCRIPTIONS must be at least 1")
	}
	if c.SeenRetention < 0 {
		return fmt.Errorf("SEEN_RETENTION must not be negative")
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}
