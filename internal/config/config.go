// Package config provides environment-aware configuration management
// for the worker engine: a godotenv-based environment-file loader over
// the fleet's own domain sections.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// ParseEnvironment validates a raw environment string.
func ParseEnvironment(raw string) (Environment, bool) {
	switch Environment(strings.ToLower(raw)) {
	case Development:
		return Development, true
	case Testing:
		return Testing, true
	case Production:
		return Production, true
	default:
		return "", false
	}
}

// WorkerProvisioning groups defaults applied when creating/importing
// workers.
type WorkerProvisioning struct {
	DefaultRegion       string
	DefaultInstanceType string
	DefaultImageID      string
	CloudAccessKey      string
	CloudSecretKey      string
	CloudTenantID       string
	CloudSubscriptionID string
	CloudResourceGroup  string
}

// Monitoring groups the fleet's refresh cadence and rate-limit settings.
type Monitoring struct {
	FleetJobInterval        time.Duration
	LabsRefreshJobInterval  time.Duration
	RefreshThrottleInterval time.Duration
	ChangeThresholdPercent  float64
	FleetJobConcurrency     int
	LabsRefreshConcurrency  int
	CloudCallTimeout        time.Duration
	LabAPICallTimeout       time.Duration
	PubSubCallTimeout       time.Duration
	UpcomingJobThresholdSeconds int
}

// IdleDetection groups the auto-pause policy.
type IdleDetection struct {
	JobInterval         time.Duration
	IdleThresholdMinutes int
	Concurrency          int
}

// AutoImport groups the auto-import job's discovery filter.
type AutoImport struct {
	JobInterval     time.Duration
	Region          string
	ImageNamePattern string
	CreatedBy       string
}

// Config holds all application configuration.
type Config struct {
	Env Environment

	WorkerProvisioning WorkerProvisioning
	Monitoring         Monitoring
	IdleDetection      IdleDetection
	AutoImport         AutoImport

	// Lab HTTPS API auth
	LabAPIUsername string
	LabAPIPassword string
	LabAPIInsecureSkipVerify bool

	// Document store / job store backend selection
	DatabaseURL      string
	RedisURL         string
	JobStoreBackend  string // "postgres" | "redis" | "memory"

	// Admin surface
	AdminPort int

	// Logging
	LogLevel  string
	LogFormat string

	// Features
	MetricsEnabled bool
}

// Load loads configuration based on the WORKER_ENGINE_ENV environment
// variable, falling back to an environment-specific .env file if present.
func Load() (*Config, error) {
	envStr := os.Getenv("WORKER_ENGINE_ENV")
	if envStr == "" {
		envStr = string(Development)
	}

	env, ok := ParseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid WORKER_ENGINE_ENV: %s (must be development, testing, or production)", envStr)
	}

	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("warning: could not load %s: %v\n", configFile, err)
		}
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	c.WorkerProvisioning = WorkerProvisioning{
		DefaultRegion:       getEnv("CLOUD_DEFAULT_REGION", "eastus"),
		DefaultInstanceType: getEnv("CLOUD_DEFAULT_INSTANCE_TYPE", "Standard_D4s_v3"),
		DefaultImageID:      getEnv("CLOUD_DEFAULT_IMAGE_ID", ""),
		CloudAccessKey:      getEnv("CLOUD_ACCESS_KEY", ""),
		CloudSecretKey:      getEnv("CLOUD_SECRET_KEY", ""),
		CloudTenantID:       getEnv("CLOUD_TENANT_ID", ""),
		CloudSubscriptionID: getEnv("CLOUD_SUBSCRIPTION_ID", ""),
		CloudResourceGroup:  getEnv("CLOUD_RESOURCE_GROUP", ""),
	}

	fleetInterval, err := time.ParseDuration(getEnv("FLEET_JOB_INTERVAL", "300s"))
	if err != nil {
		return fmt.Errorf("invalid FLEET_JOB_INTERVAL: %w", err)
	}
	labsInterval, err := time.ParseDuration(getEnv("LABS_REFRESH_JOB_INTERVAL", "1800s"))
	if err != nil {
		return fmt.Errorf("invalid LABS_REFRESH_JOB_INTERVAL: %w", err)
	}
	throttleInterval, err := time.ParseDuration(getEnv("REFRESH_THROTTLE_INTERVAL", "10s"))
	if err != nil {
		return fmt.Errorf("invalid REFRESH_THROTTLE_INTERVAL: %w", err)
	}
	cloudTimeout, err := time.ParseDuration(getEnv("CLOUD_CALL_TIMEOUT", "30s"))
	if err != nil {
		return fmt.Errorf("invalid CLOUD_CALL_TIMEOUT: %w", err)
	}
	labTimeout, err := time.ParseDuration(getEnv("LAB_API_CALL_TIMEOUT", "30s"))
	if err != nil {
		return fmt.Errorf("invalid LAB_API_CALL_TIMEOUT: %w", err)
	}
	pubsubTimeout, err := time.ParseDuration(getEnv("PUBSUB_CALL_TIMEOUT", "10s"))
	if err != nil {
		return fmt.Errorf("invalid PUBSUB_CALL_TIMEOUT: %w", err)
	}
	changeThreshold, err := strconv.ParseFloat(getEnv("CHANGE_THRESHOLD_PERCENT", "5.0"), 64)
	if err != nil {
		return fmt.Errorf("invalid CHANGE_THRESHOLD_PERCENT: %w", err)
	}

	c.Monitoring = Monitoring{
		FleetJobInterval:        fleetInterval,
		LabsRefreshJobInterval:  labsInterval,
		RefreshThrottleInterval: throttleInterval,
		ChangeThresholdPercent:  changeThreshold,
		FleetJobConcurrency:     getIntEnv("FLEET_JOB_CONCURRENCY", 10),
		LabsRefreshConcurrency:  getIntEnv("LABS_REFRESH_CONCURRENCY", 10),
		CloudCallTimeout:        cloudTimeout,
		LabAPICallTimeout:       labTimeout,
		PubSubCallTimeout:       pubsubTimeout,
		UpcomingJobThresholdSeconds: getIntEnv("REFRESH_UPCOMING_JOB_THRESHOLD_SECONDS", 10),
	}

	idleInterval, err := time.ParseDuration(getEnv("ACTIVITY_DETECTION_JOB_INTERVAL", "1800s"))
	if err != nil {
		return fmt.Errorf("invalid ACTIVITY_DETECTION_JOB_INTERVAL: %w", err)
	}
	c.IdleDetection = IdleDetection{
		JobInterval:          idleInterval,
		IdleThresholdMinutes: getIntEnv("IDLE_THRESHOLD_MINUTES", 30),
		Concurrency:          getIntEnv("ACTIVITY_DETECTION_CONCURRENCY", 5),
	}

	autoImportInterval, err := time.ParseDuration(getEnv("AUTO_IMPORT_JOB_INTERVAL", "3600s"))
	if err != nil {
		return fmt.Errorf("invalid AUTO_IMPORT_JOB_INTERVAL: %w", err)
	}
	c.AutoImport = AutoImport{
		JobInterval:      autoImportInterval,
		Region:           getEnv("AUTO_IMPORT_REGION", c.WorkerProvisioning.DefaultRegion),
		ImageNamePattern: getEnv("AUTO_IMPORT_IMAGE_NAME_PATTERN", ""),
		CreatedBy:        getEnv("AUTO_IMPORT_CREATED_BY", "auto_import_job"),
	}

	c.LabAPIUsername = getEnv("LAB_API_USERNAME", "")
	c.LabAPIPassword = getEnv("LAB_API_PASSWORD", "")
	c.LabAPIInsecureSkipVerify = getBoolEnv("LAB_API_INSECURE_SKIP_VERIFY", false)

	c.DatabaseURL = getEnv("DATABASE_URL", "")
	c.RedisURL = getEnv("REDIS_URL", "")
	c.JobStoreBackend = getEnv("JOB_STORE_BACKEND", "memory")

	c.AdminPort = getIntEnv("ADMIN_PORT", 8090)

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "json")

	c.MetricsEnabled = getBoolEnv("METRICS_ENABLED", true)

	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
func (c *Config) IsProduction() bool  { return c.Env == Production }

// Validate checks invariants that loadFromEnv's defaulting cannot enforce
// on its own.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.WorkerProvisioning.CloudAccessKey == "" || c.WorkerProvisioning.CloudSecretKey == "" {
			return fmt.Errorf("CLOUD_ACCESS_KEY and CLOUD_SECRET_KEY are required in production")
		}
		if c.WorkerProvisioning.CloudTenantID == "" || c.WorkerProvisioning.CloudSubscriptionID == "" || c.WorkerProvisioning.CloudResourceGroup == "" {
			return fmt.Errorf("CLOUD_TENANT_ID, CLOUD_SUBSCRIPTION_ID, and CLOUD_RESOURCE_GROUP are required in production")
		}
		if c.LabAPIInsecureSkipVerify {
			return fmt.Errorf("LAB_API_INSECURE_SKIP_VERIFY must be false in production")
		}
	}
	switch c.JobStoreBackend {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("invalid JOB_STORE_BACKEND: %s (must be postgres, redis, or memory)", c.JobStoreBackend)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required: worker and lab state always persists to the document store regardless of JOB_STORE_BACKEND")
	}
	if c.JobStoreBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when JOB_STORE_BACKEND=redis")
	}
	if c.AdminPort < 1024 || c.AdminPort > 65535 {
		return fmt.Errorf("invalid ADMIN_PORT: %d (must be between 1024 and 65535)", c.AdminPort)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
