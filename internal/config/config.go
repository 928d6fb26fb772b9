package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig
	Source SourceConfig
	Cache  CacheConfig
	Warmup WarmupConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SourceConfig describes the two upstream archive endpoints.
type SourceConfig struct {
	DailyURL        string
	HistoricalURL   string
	Timeout         time.Duration
	MaxArchiveBytes int64
	MaxEntryBytes   int64
}

type CacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// WarmupConfig schedules background cache refreshes. An empty Schedule disables them.
type WarmupConfig struct {
	Schedule string
	Location string
}

const (
	DefaultDailyURL      = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref.zip"
	DefaultHistoricalURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-hist.zip"
)

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()
	config.Server = ServerConfig{
		Port:         getEnvInt("SERVER_PORT", config.Server.Port),
		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", config.Server.ReadTimeout),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", config.Server.WriteTimeout),
		IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", config.Server.IdleTimeout),
	}
	config.Source = SourceConfig{
		DailyURL:        getEnvString("SOURCE_DAILY_URL", config.Source.DailyURL),
		HistoricalURL:   getEnvString("SOURCE_HISTORICAL_URL", config.Source.HistoricalURL),
		Timeout:         getEnvDuration("SOURCE_TIMEOUT", config.Source.Timeout),
		MaxArchiveBytes: getEnvInt64("SOURCE_MAX_ARCHIVE_BYTES", config.Source.MaxArchiveBytes),
		MaxEntryBytes:   getEnvInt64("SOURCE_MAX_ENTRY_BYTES", config.Source.MaxEntryBytes),
	}
	config.Cache = CacheConfig{
		Capacity: getEnvInt("CACHE_CAPACITY", config.Cache.Capacity),
		TTL:      getEnvDuration("CACHE_TTL", config.Cache.TTL),
	}
	config.Warmup = WarmupConfig{
		Schedule: getEnvRaw("WARMUP_SCHEDULE", config.Warmup.Schedule),
		Location: getEnvString("WARMUP_LOCATION", config.Warmup.Location),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Source: SourceConfig{
			DailyURL:        DefaultDailyURL,
			HistoricalURL:   DefaultHistoricalURL,
			Timeout:         30 * time.Second,
			MaxArchiveBytes: 64 << 20,
			MaxEntryBytes:   256 << 20,
		},
		Cache: CacheConfig{
			Capacity: 10,
			TTL:      time.Hour,
		},
		Warmup: WarmupConfig{
			Schedule: "5 16 * * 1-5",
			Location: "Europe/Berlin",
		},
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Source.DailyURL == "":
		return errors.New("daily source URL is empty")
	case c.Source.HistoricalURL == "":
		return errors.New("historical source URL is empty")
	case c.Source.Timeout <= 0:
		return fmt.Errorf("source timeout must be positive, got %s", c.Source.Timeout)
	case c.Source.MaxArchiveBytes <= 0:
		return fmt.Errorf("max archive bytes must be positive, got %d", c.Source.MaxArchiveBytes)
	case c.Source.MaxEntryBytes <= 0:
		return fmt.Errorf("max entry bytes must be positive, got %d", c.Source.MaxEntryBytes)
	case c.Cache.Capacity <= 0:
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvRaw distinguishes an unset variable from one explicitly set to "".
func getEnvRaw(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s, using default: %d\n", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		fmt.Printf("Warning: Invalid value for %s, using default: %d\n", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		fmt.Printf("Warning: Invalid duration for %s, using default: %s\n", key, defaultValue)
		return defaultValue
	}

	return value
}
