package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL        string
	SocketURL      string
	SessionDBPath  string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	TypingTTL      time.Duration
}

func Load() *Config {
	// Optional; env vars win over .env entries already set.
	_ = godotenv.Load()

	return &Config{
		BaseURL:        getEnv("ALPHACHAT_BASE_URL", "https://alphachat-v2-backend.onrender.com"),
		SocketURL:      getEnv("ALPHACHAT_SOCKET_URL", "wss://alphachat-v2-backend.onrender.com/socket"),
		SessionDBPath:  getEnv("ALPHACHAT_SESSION_DB", "alphachat-session.db"),
		RequestTimeout: getDuration("ALPHACHAT_REQUEST_TIMEOUT", 30*time.Second),
		ConnectTimeout: getDuration("ALPHACHAT_CONNECT_TIMEOUT", 20*time.Second),
		RetryAttempts:  getInt("ALPHACHAT_RETRY_ATTEMPTS", 5),
		RetryDelay:     getDuration("ALPHACHAT_RETRY_DELAY", time.Second),
		TypingTTL:      getDuration("ALPHACHAT_TYPING_TTL", 6*time.Second),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getInt(key string, fallback int) int {
	if val, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
