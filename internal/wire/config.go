package wire

import (
	"os"
	"strconv"
	"time"
)

// Config is read once from the environment at startup.
type Config struct {
	Port            string
	QueueMaxDepth   int
	WSWriteTimeout  time.Duration
	DatabaseURL     string
	ShutdownTimeout time.Duration
}

func LoadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return Config{
		Port:            port,
		QueueMaxDepth:   envInt("SYNC_QUEUE_MAX_DEPTH", 0),
		WSWriteTimeout:  envDuration("WS_WRITE_TIMEOUT_SECONDS", 10*time.Second),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
	}
}

// envDuration reads an integer-seconds env var and returns a Duration.
// Falls back to defaultVal if the var is unset or invalid.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// envInt reads a non-negative integer env var.
// Falls back to defaultVal if the var is unset or invalid.
func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultVal
}
