package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort        string
	JWTSecret       []byte
	TokenTTL        time.Duration
	UpstreamTimeout time.Duration
	StartingCredits int

	// ProviderKeys maps credential refs to API keys. Captured once at
	// startup; an empty value means the provider is not configured.
	ProviderKeys map[string]string

	Database DatabaseConfig
	Redis    RedisConfig
	Usage    UsageConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory user store and ledger.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. An empty address disables the
// Redis-backed ledger.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// UsageConfig holds settings for the async usage recorder.
type UsageConfig struct {
	FilePath      string
	BufferSize    int
	FlushInterval time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnvString("HTTP_PORT", "5000"),
		JWTSecret:       []byte(getEnvString("JWT_SECRET", "your_jwt_secret_key")),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		StartingCredits: getEnvInt("STARTING_CREDITS", 100),
		ProviderKeys: map[string]string{
			"deepseek": os.Getenv("DEEPSEEK_API_KEY"),
			"tongyi":   os.Getenv("TONGYI_API_KEY"),
			"yuanbao":  os.Getenv("YUANBAO_API_KEY"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      os.Getenv("REDIS_ADDRESS"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Usage: UsageConfig{
			FilePath:      getEnvString("USAGE_LOG_PATH", ""),
			BufferSize:    getEnvInt("USAGE_BUFFER_SIZE", 1000),
			FlushInterval: getEnvDuration("USAGE_FLUSH_INTERVAL", 5*time.Second),
		},
	}

	return cfg, nil
}
