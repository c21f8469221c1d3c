package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"ENV_FILE", "TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS",
	"POLL_INTERVAL", "BATCH_SIZE", "SEND_PACE", "SEND_BACKOFF",
	"FEED_DOMAIN", "MAX_SUBSCRIPTIONS", "SEEN_RETENTION",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func defaults(token string) *Config {
	return &Config{
		TelegramBotToken: token,
		DatabasePath:     "./data/bot.db",
		LogLevel:         "info",
		PollInterval:     time.Minute,
		BatchSize:        10,
		SendPace:         time.Second,
		SendBackoff:      5 * time.Second,
		FeedDomain:       "upwork.com",
		MaxSubscriptions: 500,
		SeenRetention:    10000,
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: func() *Config { return defaults("test-token") },
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"DATABASE_PATH":      "/tmp/bot.db",
				"LOG_LEVEL":          "debug",
				"ALLOWED_USERS":      "111,222,333",
				"POLL_INTERVAL":      "2m",
				"BATCH_SIZE":         "5",
				"SEND_PACE":          "500ms",
				"SEND_BACKOFF":       "10s",
				"FEED_DOMAIN":        "example.com",
				"MAX_SUBSCRIPTIONS":  "50",
				"SEEN_RETENTION":     "0",
			},
			want: func() *Config {
				return &Config{
					TelegramBotToken: "tok",
					DatabasePath:     "/tmp/bot.db",
					LogLevel:         "debug",
					AllowedUsers:     UserIDs{111, 222, 333},
					PollInterval:     2 * time.Minute,
					BatchSize:        5,
					SendPace:         500 * time.Millisecond,
					SendBackoff:      10 * time.Second,
					FeedDomain:       "example.com",
					MaxSubscriptions: 50,
					SeenRetention:    0,
				}
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      " 10 , 20 , ",
			},
			want: func() *Config {
				c := defaults("tok")
				c.AllowedUsers = UserIDs{10, 20}
				return c
			},
		},
		{
			name: "invalid user id",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      "123,abc",
			},
			wantErr: true,
		},
		{
			name: "zero batch size",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"BATCH_SIZE":         "0",
			},
			wantErr: true,
		},
		{
			name: "bad duration",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"POLL_INTERVAL":      "soon",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bot.env")
	content := "TELEGRAM_BOT_TOKEN=file-token\nBATCH_SIZE=3\nFEED_DOMAIN=file.example\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("FEED_DOMAIN", "env.example")

	got, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := defaults("file-token")
	want.BatchSize = 3
	want.FeedDomain = "env.example"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers UserIDs
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: UserIDs{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: UserIDs{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
