package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPPort          = "8080"
	defaultTemporalAddress   = "localhost:7233"
	defaultTemporalNS        = "default"
	defaultTaskQueue         = "background-check-task-queue"
	defaultMinioEndpoint     = "localhost:9000"
	defaultMinioBucket       = "background-checks"
	defaultVendorInboxPrefix = "vendor-inbox/"
	defaultSubmissionsPrefix = "verification-submissions/"
	defaultSLAThresholdDays  = 3
	defaultStalledAfterDays  = 7
	defaultSLARefreshCron    = "0 * * * *"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	HTTPPort          string
	LogLevel          string
	LogFormat         string
	StoreBackend      string
	PostgresDSN       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string
	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioBucket       string
	MinioUseSSL       bool
	VendorInboxPrefix string
	SubmissionsPrefix string
	SLAThresholdDays  int
	StalledAfterDays  int
	SLARefreshCron    string
	WorkflowIDPrefix  string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:          getenv("HTTP_PORT", defaultHTTPPort),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LogFormat:         getenv("LOG_FORMAT", "json"),
		StoreBackend:      getenv("STORE_BACKEND", StoreMemory),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getenvInt("REDIS_DB", 0),
		TemporalAddress:   getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace: getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue: getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
		MinioEndpoint:     getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:       getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:       getenvBool("MINIO_USE_SSL", false),
		VendorInboxPrefix: getenv("VENDOR_INBOX_PREFIX", defaultVendorInboxPrefix),
		SubmissionsPrefix: getenv("SUBMISSIONS_PREFIX", defaultSubmissionsPrefix),
		SLAThresholdDays:  getenvInt("SLA_THRESHOLD_DAYS", defaultSLAThresholdDays),
		StalledAfterDays:  getenvInt("STALLED_AFTER_DAYS", defaultStalledAfterDays),
		SLARefreshCron:    getenv("SLA_REFRESH_CRON", defaultSLARefreshCron),
		WorkflowIDPrefix:  getenv("WORKFLOW_ID_PREFIX", "bgcheck"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for STORE_BACKEND=postgres")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.SLAThresholdDays < 0 {
		return fmt.Errorf("SLA_THRESHOLD_DAYS must be non-negative")
	}
	if c.StalledAfterDays < 0 {
		return fmt.Errorf("STALLED_AFTER_DAYS must be non-negative")
	}
	return nil
}

// ValidateShared is for processes that write cases alongside the API. The
// memory backend is private to one process, so they need postgres or redis.
func (c Config) ValidateShared() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.StoreBackend == StoreMemory {
		return fmt.Errorf("STORE_BACKEND=memory is private to one process; set STORE_BACKEND to %s or %s so the worker and API share cases", StorePostgres, StoreRedis)
	}
	return nil
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
