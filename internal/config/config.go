package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"split-the-g/pkg/validation"
)

const (
	StorageBackendAzure = "azure"
	StorageBackendLocal = "local"
)

type Config struct {
	Host               string
	Port               string
	PublicBaseURL      string
	RequestTimeout     time.Duration
	InferenceTimeout   time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	Inference InferenceConfig
	Storage   StorageConfig
	Detect    DetectConfig
	Precheck  PrecheckConfig

	DatabasePath  string
	ScoringConfig string
}

// InferenceConfig points at the hosted vision API
type InferenceConfig struct {
	BaseURL     string
	APIKey      string
	Workspace   string
	Workflow    string
	DetectModel string
}

type StorageConfig struct {
	Backend         string
	AzureAccount    string
	AzureKey        string
	AzureContainer  string
	AzureServiceURL string
	LocalDir        string
}

// DetectConfig tunes the live auto-capture vote
type DetectConfig struct {
	Window        int
	MinVotes      int
	MinConfidence float64
	SessionTTL    time.Duration
}

type PrecheckConfig struct {
	MinSide      int
	MinSharpness float64
	MaxSide      int
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads an optional .env file, then the environment
func LoadFromEnv() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		InferenceTimeout:   parseDurationOrDefault("INFERENCE_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 15*1024*1024), // 15MB
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		Inference: InferenceConfig{
			BaseURL:     getEnvOrDefault("INFERENCE_API_URL", "https://detect.roboflow.com"),
			APIKey:      os.Getenv("INFERENCE_API_KEY"),
			Workspace:   getEnvOrDefault("INFERENCE_WORKSPACE", "split-the-g"),
			Workflow:    getEnvOrDefault("INFERENCE_WORKFLOW", "split-score"),
			DetectModel: getEnvOrDefault("DETECT_MODEL", "g-glass-detect/1"),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageBackendLocal)),
			AzureAccount:    os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AzureKey:        os.Getenv("AZURE_STORAGE_KEY"),
			AzureContainer:  getEnvOrDefault("AZURE_STORAGE_CONTAINER", "splits"),
			AzureServiceURL: os.Getenv("AZURE_STORAGE_SERVICE_URL"),
			LocalDir:        getEnvOrDefault("LOCAL_STORAGE_DIR", "./data/media"),
		},
		Detect: DetectConfig{
			Window:        int(parseIntOrDefault("DETECT_WINDOW", 5)),
			MinVotes:      int(parseIntOrDefault("DETECT_MIN_VOTES", 3)),
			MinConfidence: parseFloatOrDefault("DETECT_MIN_CONFIDENCE", 0.5),
			SessionTTL:    parseDurationOrDefault("DETECT_SESSION_TTL", 2*time.Minute),
		},
		Precheck: PrecheckConfig{
			MinSide:      int(parseIntOrDefault("PRECHECK_MIN_SIDE", 256)),
			MinSharpness: parseFloatOrDefault("PRECHECK_MIN_SHARPNESS", 10),
			MaxSide:      int(parseIntOrDefault("UPLOAD_MAX_SIDE", 1280)),
		},
		DatabasePath:  getEnvOrDefault("DATABASE_PATH", "./data/splits.db"),
		ScoringConfig: os.Getenv("SCORING_CONFIG"),
	}
	cfg.PublicBaseURL = strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:"+strings.TrimSpace(cfg.Port)), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.InferenceTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, inference=%s)",
			c.RequestTimeout, c.InferenceTimeout)
	}

	urls := validation.NewURLValidator()
	if err := urls.ValidateBaseURL(c.Inference.BaseURL); err != nil {
		return fmt.Errorf("invalid INFERENCE_API_URL: %w", err)
	}
	if err := urls.ValidateBaseURL(c.PublicBaseURL); err != nil {
		return fmt.Errorf("invalid PUBLIC_BASE_URL: %w", err)
	}

	switch c.Storage.Backend {
	case StorageBackendAzure:
		if c.Storage.AzureAccount == "" || c.Storage.AzureKey == "" {
			return fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
		if c.Storage.AzureContainer == "" {
			return fmt.Errorf("AZURE_STORAGE_CONTAINER must not be empty")
		}
	case StorageBackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("LOCAL_STORAGE_DIR must not be empty")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %q", c.Storage.Backend)
	}

	if c.Detect.Window < 1 {
		return fmt.Errorf("DETECT_WINDOW must be >= 1 (got %d)", c.Detect.Window)
	}
	if c.Detect.MinVotes < 1 || c.Detect.MinVotes > c.Detect.Window {
		return fmt.Errorf("DETECT_MIN_VOTES must be within 1..%d (got %d)", c.Detect.Window, c.Detect.MinVotes)
	}
	if c.Detect.MinConfidence < 0 || c.Detect.MinConfidence > 1 {
		return fmt.Errorf("DETECT_MIN_CONFIDENCE must be within 0..1 (got %g)", c.Detect.MinConfidence)
	}
	if c.Precheck.MaxSide < c.Precheck.MinSide {
		return fmt.Errorf("UPLOAD_MAX_SIDE (%d) must not be below PRECHECK_MIN_SIDE (%d)", c.Precheck.MaxSide, c.Precheck.MinSide)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
