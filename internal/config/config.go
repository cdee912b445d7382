// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config contains application configuration.
type Config struct {
	StoreBackend string `validate:"oneof=postgres sqlite memory"`
	DBDSN        string `validate:"required_unless=StoreBackend memory"`
	HTTPAddr     string `validate:"required"`

	NATSURL           string
	NATSSubjectPrefix string `validate:"required"`

	GeofenceFile    string
	GeofenceTimeout time.Duration `validate:"gte=0"`
	DirectoryFile   string

	RateLimitPerSec float64 `validate:"gt=0"`
	RateLimitBurst  int     `validate:"gt=0"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`

	DBConnectAttempts int           `validate:"gte=1"`
	DBConnectDelay    time.Duration `validate:"gte=0"`
}

// Load reads configuration from environment variables and envFile.
// A missing env file is not an error; variables already set win over it.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	var errs []error
	cfg := Config{
		StoreBackend:      strings.ToLower(getString("STORE_BACKEND", "postgres")),
		DBDSN:             os.Getenv("DB_DSN"),
		HTTPAddr:          httpAddr(),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getString("NATS_SUBJECT_PREFIX", "fleet.events"),
		GeofenceFile:      os.Getenv("GEOFENCE_FILE"),
		GeofenceTimeout:   getDuration("GEOFENCE_TIMEOUT", 2*time.Second, &errs),
		DirectoryFile:     os.Getenv("DIRECTORY_FILE"),
		RateLimitPerSec:   getFloat("RATE_LIMIT_PER_SEC", 5, &errs),
		RateLimitBurst:    getInt("RATE_LIMIT_BURST", 10, &errs),
		LogLevel:          strings.ToLower(getString("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getString("LOG_FORMAT", "json")),
		DBConnectAttempts: getInt("DB_CONNECT_ATTEMPTS", 10, &errs),
		DBConnectDelay:    getDuration("DB_CONNECT_DELAY", 2*time.Second, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func httpAddr() string {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
