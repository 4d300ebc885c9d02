package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uma-arai/sbcntr-reservation/internal/common/database"
	"github.com/uma-arai/sbcntr-reservation/internal/messaging"
)

type Config struct {
	DB   database.Config  `yaml:"db"`
	NATS messaging.Config `yaml:"nats"`
	HTTP struct {
		Port       int  `yaml:"port"`
		SSEEnabled bool `yaml:"sse_enabled"`
	} `yaml:"http"`
	Seed struct {
		Enabled bool          `yaml:"enabled"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"seed"`
	EnableTracing bool `yaml:"-"`
}

// Default は環境変数・設定ファイルがない場合の設定を返します
func Default() *Config {
	cfg := &Config{
		DB: database.Config{
			Host:     "localhost",
			Port:     5432,
			UserName: "sbcntrapp",
			Password: "password",
			DBName:   "sbcntrapp",
			SSLMode:  "disable",
		},
		NATS: messaging.Config{
			URL:            "nats://localhost:4222",
			Subject:        "reservations",
			Queue:          "reservation-service",
			ClientName:     "reservation-service",
			Concurrency:    16,
			HandlerTimeout: 30 * time.Second,
		},
	}
	cfg.HTTP.Port = 8080
	cfg.HTTP.SSEEnabled = false
	cfg.Seed.Enabled = true
	cfg.Seed.Timeout = time.Minute
	return cfg
}

// LoadConfig は設定を読み込みます
// デフォルト値 → 設定ファイル(path) → 環境変数 の順に上書きします
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.DB.Host = getEnvOrDefault("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvAsIntOrDefault("DB_PORT", cfg.DB.Port)
	cfg.DB.UserName = getEnvOrDefault("DB_USERNAME", cfg.DB.UserName)
	cfg.DB.Password = getEnvOrDefault("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.DBName = getEnvOrDefault("DB_NAME", cfg.DB.DBName)
	cfg.DB.SSLMode = getEnvOrDefault("DB_SSL_MODE", cfg.DB.SSLMode)

	cfg.NATS.URL = getEnvOrDefault("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getEnvOrDefault("NATS_SUBJECT", cfg.NATS.Subject)
	cfg.NATS.Queue = getEnvOrDefault("NATS_QUEUE", cfg.NATS.Queue)
	cfg.NATS.ClientName = getEnvOrDefault("NATS_CLIENT_NAME", cfg.NATS.ClientName)
	cfg.NATS.Concurrency = getEnvAsIntOrDefault("NATS_CONCURRENCY", cfg.NATS.Concurrency)

	cfg.HTTP.Port = getEnvAsIntOrDefault("HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.SSEEnabled = getEnvAsBoolOrDefault("SSE_ENABLED", cfg.HTTP.SSEEnabled)

	cfg.Seed.Enabled = getEnvAsBoolOrDefault("SEED_ENABLED", cfg.Seed.Enabled)
	cfg.Seed.Timeout = getEnvAsDurationOrDefault("SEED_TIMEOUT", cfg.Seed.Timeout)

	if cfg.NATS.Subject == "" {
		return nil, fmt.Errorf("nats subject must not be empty")
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Printf("Environment variable %s is not set, using value from config file or default", key)
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Environment variable %s is not an integer, using default value", key)
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Printf("Environment variable %s is not a boolean, using default value", key)
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Environment variable %s is not a duration, using default value", key)
	}
	return defaultValue
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
