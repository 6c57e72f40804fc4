// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BackendLocal = "local"
	BackendGRPC  = "grpc"
)

// Checker holds the settings needed to run a check: logging, the detection
// backend and the keyword sets. The CLI needs nothing else.
type Checker struct {
	LogLevel string `validate:"oneof=debug info warn warning error"`

	DetectionBackend string        `validate:"oneof=local grpc"`
	VisionAddr       string        `validate:"required_if=DetectionBackend grpc"`
	CascadePath      string        `validate:"required_if=DetectionBackend local"`
	FacePreset       string        `validate:"oneof=fast accurate"`
	OCRLanguages     []string      `validate:"required,min=1,dive,required"`
	FrontKeywords    []string      `validate:"dive,required"`
	BackKeywords     []string      `validate:"dive,required"`
	DetectionTimeout time.Duration `validate:"gte=0"`
}

// Config holds every setting of the API server.
type Config struct {
	Checker

	HTTPAddr    string `validate:"required"`
	DatabaseDSN string `validate:"required"`
	RedisAddr   string `validate:"required,hostname_port"`
	JWTSecret   string `validate:"required"`
	JWTAudience string

	CaptureDir     string        `validate:"required"`
	CaptureTTL     time.Duration `validate:"gt=0"`
	MaxUploadBytes int64         `validate:"gt=0"`
}

// LoadChecker reads and validates only the check settings, ignoring the
// server ones.
func LoadChecker() (*Checker, error) {
	checker, err := readChecker()
	if err != nil {
		return nil, err
	}
	if err := validate(checker); err != nil {
		return nil, err
	}
	return checker, nil
}

// Load reads the server configuration from the environment, applying
// defaults for anything unset, and validates the result.
func Load() (*Config, error) {
	checker, err := readChecker()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Checker:     *checker,
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=idcheck port=5432 sslmode=disable"),
		RedisAddr:   getEnv("REDIS_ADDR", "redis:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience: os.Getenv("JWT_AUDIENCE"),
		CaptureDir:  getEnv("CAPTURE_DIR", "/var/lib/idcheck/captures"),
	}

	if cfg.CaptureTTL, err = getDuration("CAPTURE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	return validate(c)
}

func readChecker() (*Checker, error) {
	checker := &Checker{
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DetectionBackend: strings.ToLower(getEnv("DETECTION_BACKEND", BackendLocal)),
		VisionAddr:       getEnv("VISION_ADDR", "vision-service:50051"),
		CascadePath:      getEnv("CASCADE_PATH", "/usr/share/opencv4/haarcascades"),
		FacePreset:       strings.ToLower(getEnv("FACE_PRESET", "fast")),
		OCRLanguages:     splitList(getEnv("OCR_LANGUAGES", "eng")),
		FrontKeywords:    splitList(os.Getenv("FRONT_KEYWORDS")),
		BackKeywords:     splitList(os.Getenv("BACK_KEYWORDS")),
	}
	var err error
	if checker.DetectionTimeout, err = getDuration("DETECTION_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	return checker, nil
}

func validate(v interface{}) error {
	if err := validator.New().Struct(v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma separated value, dropping blanks. Keywords are
// lower-cased since matching is case-insensitive anyway.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
