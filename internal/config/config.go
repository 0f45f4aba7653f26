package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	Addr         string
	DBPath       string
	TokenTTL     time.Duration
	ChallengeTTL time.Duration
	RateLimits   RateLimits
	AdminEmails  []string
	LogLevel     slog.Level
	Version      string
}

type RateLimits struct {
	CommentPerMinute int
	LoginPerMinute   int
}

type Client struct {
	BaseURL            string
	SessionPath        string
	RequestTimeout     time.Duration
	ResolveConcurrency int
	Refetch            bool
	LogLevel           slog.Level
}

// LoadEnvFile reads .env from the working directory into the process
// environment. Variables already set win. A missing file is not an error.
func LoadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func LoadServer() Server {
	addr := envString("LEARNUP_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	return Server{
		Addr:         addr,
		DBPath:       envString("LEARNUP_DB", "learnup.db"),
		TokenTTL:     envDuration("LEARNUP_TOKEN_TTL", 24*time.Hour),
		ChallengeTTL: envDuration("LEARNUP_CHALLENGE_TTL", 5*time.Minute),
		RateLimits: RateLimits{
			CommentPerMinute: envInt("LEARNUP_RL_COMMENT_PER_MIN", 30),
			LoginPerMinute:   envInt("LEARNUP_RL_LOGIN_PER_MIN", 10),
		},
		AdminEmails: envList("LEARNUP_ADMIN_EMAILS"),
		LogLevel:    envLevel("LEARNUP_LOG_LEVEL", slog.LevelInfo),
		Version:     "dev",
	}
}

func LoadClient() Client {
	return Client{
		BaseURL:            strings.TrimRight(envString("LEARNUP_URL", "http://localhost:8080"), "/"),
		SessionPath:        envString("LEARNUP_SESSION", defaultSessionPath()),
		RequestTimeout:     envDuration("LEARNUP_REQUEST_TIMEOUT", 30*time.Second),
		ResolveConcurrency: envInt("LEARNUP_RESOLVE_CONCURRENCY", 0),
		Refetch:            envBool("LEARNUP_REFETCH", true),
		LogLevel:           envLevel("LEARNUP_LOG_LEVEL", slog.LevelWarn),
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "learnup-session.db"
	}
	return filepath.Join(home, ".learnup", "session.db")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envLevel(key string, def slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return lvl
}
