package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	DirectURL   string
	RedisURL    string

	DBMaxConns        int
	DBMinConns        int
	DBMaxConnLifetime time.Duration

	// JWT (decode-only, collaborator issues and signs tokens)
	JWTSecret string

	// Worker
	WorkerID            string
	WorkerMin           int
	WorkerMax           int
	WorkerQueueSize     int
	WorkerScaleInterval time.Duration
	WorkerIdleTimeout   time.Duration

	// Cache TTLs
	CacheCustodyCurrentTTLMin int
	CacheCustodyPastTTLHour   int
	CacheHandoffOnlyTTLHour   int
	CacheEventsTTLMin         int

	// Sync
	SyncBatchIntervalMin  int
	SyncHTTPTimeoutSec    int
	SyncRetryBaseMin      int
	SyncRetryMaxHour      int
	SyncDiscoverTimeoutMS int

	// CORS
	AllowedOrigins []string

	// Scheduler
	SchedulerEnabled bool
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DirectURL:   getEnv("DIRECT_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 15),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxConnLifetime: time.Duration(getEnvInt("DB_MAX_CONN_LIFETIME_MIN", 60)) * time.Minute,

		JWTSecret: getEnv("JWT_SECRET", ""),

		WorkerID:            getEnv("WORKER_ID", generateWorkerID()),
		WorkerMin:           getEnvInt("WORKER_MIN", 2),
		WorkerMax:           getEnvInt("WORKER_MAX", 10),
		WorkerQueueSize:     getEnvInt("WORKER_QUEUE_SIZE", 500),
		WorkerScaleInterval: time.Duration(getEnvInt("WORKER_SCALE_INTERVAL_SEC", 10)) * time.Second,
		WorkerIdleTimeout:   time.Duration(getEnvInt("WORKER_IDLE_TIMEOUT_SEC", 30)) * time.Second,

		CacheCustodyCurrentTTLMin: getEnvInt("CACHE_CUSTODY_CURRENT_TTL_MIN", 30),
		CacheCustodyPastTTLHour:   getEnvInt("CACHE_CUSTODY_PAST_TTL_HOUR", 4),
		CacheHandoffOnlyTTLHour:   getEnvInt("CACHE_HANDOFF_ONLY_TTL_HOUR", 1),
		CacheEventsTTLMin:         getEnvInt("CACHE_EVENTS_TTL_MIN", 15),

		SyncBatchIntervalMin:  getEnvInt("SYNC_BATCH_INTERVAL_MIN", 60),
		SyncHTTPTimeoutSec:    getEnvInt("SYNC_HTTP_TIMEOUT_SEC", 20),
		SyncRetryBaseMin:      getEnvInt("SYNC_RETRY_BASE_MIN", 5),
		SyncRetryMaxHour:      getEnvInt("SYNC_RETRY_MAX_HOUR", 2),
		SyncDiscoverTimeoutMS: getEnvInt("SYNC_DISCOVER_TIMEOUT_MS", 4000),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
