package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the audit service.
type Config struct {
	Port        string
	DatabaseURL string
	NatsURL     string

	// RedisURL backs the publish spool. Optional: without it, failed
	// publishes are logged and lost.
	RedisURL string

	// MaxDeliver is the redelivery ceiling before a message is dead-lettered.
	MaxDeliver int

	// AckWait is how long the broker waits for an ack before redelivering.
	AckWait time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	redisURL := getEnv("REDIS_URL", "")
	maxDeliver := getEnvInt("MAX_DELIVER", 5)
	ackWaitSec := getEnvInt("ACK_WAIT_SECONDS", 30)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if maxDeliver < 1 {
		return nil, fmt.Errorf("MAX_DELIVER must be at least 1")
	}

	return &Config{
		Port:        port,
		DatabaseURL: dbURL,
		NatsURL:     natsURL,
		RedisURL:    redisURL,
		MaxDeliver:  maxDeliver,
		AckWait:     time.Duration(ackWaitSec) * time.Second,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
