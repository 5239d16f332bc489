package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config holds all runtime configuration for the ledger.
type Config struct {
	Port     int
	LogLevel string

	StoreBackend    string
	PebbleDir       string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int

	KafkaBrokers   []string
	KafkaTopic     string
	WebhookURL     string
	WebhookTimeout time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// EnvFile is the dotenv file Load reads from the working directory, if
// it exists. Variables already set in the environment win.
const EnvFile = ".env"

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendPebble)
	v.SetDefault("PEBBLE_DIR", "data/ledger")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", "0")
	v.SetDefault("REDIS_MAX_RETRIES", "100")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "stockledger.offers")
	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "5s")
	v.SetDefault("READ_TIMEOUT", "5s")
	v.SetDefault("WRITE_TIMEOUT", "10s")
	v.SetDefault("IDLE_TIMEOUT", "60s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

// Load reads configuration from the .env file and environment variables,
// applies defaults, and validates values. It returns an error for any
// invalid value.
func Load() (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	port, err := strconv.Atoi(v.GetString("PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d out of range 1-65535", port)
	}

	logLevel := v.GetString("LOG_LEVEL")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	backend := strings.ToLower(v.GetString("STORE_BACKEND"))
	switch backend {
	case BackendMemory, BackendPebble, BackendRedis:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q, must be one of: memory, pebble, redis", backend)
	}

	pebbleDir := strings.TrimSpace(v.GetString("PEBBLE_DIR"))
	if backend == BackendPebble && pebbleDir == "" {
		return nil, fmt.Errorf("invalid PEBBLE_DIR: required when STORE_BACKEND is pebble")
	}

	redisDB, err := strconv.Atoi(v.GetString("REDIS_DB"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if redisDB < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB: %d must be >= 0", redisDB)
	}

	redisMaxRetries, err := strconv.Atoi(v.GetString("REDIS_MAX_RETRIES"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_MAX_RETRIES: %w", err)
	}
	if redisMaxRetries < 1 {
		return nil, fmt.Errorf("invalid REDIS_MAX_RETRIES: %d must be >= 1", redisMaxRetries)
	}

	kafkaBrokers := splitList(v.GetString("KAFKA_BROKERS"))
	kafkaTopic := strings.TrimSpace(v.GetString("KAFKA_TOPIC"))
	if len(kafkaBrokers) > 0 && kafkaTopic == "" {
		return nil, fmt.Errorf("invalid KAFKA_TOPIC: required when KAFKA_BROKERS is set")
	}

	webhookTimeout, err := getDuration(v, "WEBHOOK_TIMEOUT")
	if err != nil {
		return nil, err
	}
	readTimeout, err := getDuration(v, "READ_TIMEOUT")
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getDuration(v, "WRITE_TIMEOUT")
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getDuration(v, "IDLE_TIMEOUT")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		StoreBackend:    backend,
		PebbleDir:       pebbleDir,
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		RedisMaxRetries: redisMaxRetries,
		KafkaBrokers:    kafkaBrokers,
		KafkaTopic:      kafkaTopic,
		WebhookURL:      v.GetString("WEBHOOK_URL"),
		WebhookTimeout:  webhookTimeout,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
