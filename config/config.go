package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Gateway           GatewayConfig
	Routing           RoutingConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig selects the shared store for locks, rate windows and cached
// limit checks. An empty URL keeps that state in process memory.
type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type GatewayConfig struct {
	BaseURL            string
	PublicBaseURL      string
	ShopBaseURL        string
	Sandbox            bool
	SuccessOrderStatus string
	ConsentRequired    bool
	TokenSecret        string
	TokenTTL           time.Duration
	HTTPTimeout        time.Duration
	StatusHTTPTimeout  time.Duration
}

type RoutingConfig struct {
	LockTimeout        time.Duration
	RateWindow         time.Duration
	RateMaxRequests    int
	DailyLimitCacheTTL time.Duration
}

type JobsConfig struct {
	SyncInterval        time.Duration
	UnpaidSweepInterval time.Duration
	UnpaidTimeout       time.Duration
	BatchSize           int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}
	tokenSecret := os.Getenv("GATEWAY_TOKEN_SECRET")
	if tokenSecret == "" {
		return nil, errors.New("GATEWAY_TOKEN_SECRET environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payments-router"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Gateway: GatewayConfig{
			BaseURL:            strings.TrimRight(getEnv("GATEWAY_API_BASE_URL", "https://api.simpleso.io"), "/"),
			PublicBaseURL:      strings.TrimRight(getEnv("GATEWAY_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			ShopBaseURL:        strings.TrimRight(getEnv("GATEWAY_SHOP_BASE_URL", "http://localhost"), "/"),
			Sandbox:            getBoolEnv("GATEWAY_SANDBOX", false),
			SuccessOrderStatus: strings.ToLower(getEnv("GATEWAY_SUCCESS_ORDER_STATUS", "processing")),
			ConsentRequired:    getBoolEnv("GATEWAY_CONSENT_REQUIRED", false),
			TokenSecret:        tokenSecret,
			TokenTTL:           getMinutesEnv("GATEWAY_TOKEN_TTL_MINUTES", 24*60*time.Minute),
			HTTPTimeout:        getSecondsEnv("GATEWAY_HTTP_TIMEOUT_SECONDS", 30*time.Second),
			StatusHTTPTimeout:  getSecondsEnv("GATEWAY_STATUS_HTTP_TIMEOUT_SECONDS", 15*time.Second),
		},
		Routing: RoutingConfig{
			LockTimeout:        getSecondsEnv("ROUTING_LOCK_TIMEOUT_SECONDS", 10*time.Second),
			RateWindow:         getSecondsEnv("ROUTING_RATE_WINDOW_SECONDS", 30*time.Second),
			RateMaxRequests:    getIntEnv("ROUTING_RATE_MAX_REQUESTS", 100),
			DailyLimitCacheTTL: getSecondsEnv("ROUTING_DAILY_LIMIT_CACHE_SECONDS", 2*time.Minute),
		},
		Jobs: JobsConfig{
			SyncInterval:        getMinutesEnv("JOBS_SYNC_INTERVAL_MINUTES", 2*time.Hour),
			UnpaidSweepInterval: getMinutesEnv("JOBS_UNPAID_SWEEP_INTERVAL_MINUTES", 5*time.Minute),
			UnpaidTimeout:       getMinutesEnv("JOBS_UNPAID_TIMEOUT_MINUTES", 30*time.Minute),
			BatchSize:           int32(getIntEnv("JOBS_BATCH_SIZE", 100)),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
