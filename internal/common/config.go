package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strictness values for the parser.
const (
	StrictnessLenient = "lenient"
	StrictnessStrict  = "strict"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Parser   ParserConfig
	Health   HealthConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" or "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// IngestConfig holds orchestrator-related configuration
type IngestConfig struct {
	SourceDir     string
	ChunkSize     int
	Interval      time.Duration
	Watch         bool
	WatchDebounce time.Duration
	SkipHidden    bool
}

// ParserConfig holds parser-related configuration
type ParserConfig struct {
	Strictness string
}

// HealthConfig holds the health/metrics endpoint configuration
type HealthConfig struct {
	Addr string
}

// fileConfig is the YAML shape of an optional config file. Durations are
// strings in time.ParseDuration format.
type fileConfig struct {
	Database struct {
		Driver           string `yaml:"driver"`
		DSN              string `yaml:"dsn"`
		MaxConns         int32  `yaml:"max_conns"`
		MinConns         int32  `yaml:"min_conns"`
		MaxConnLifetime  string `yaml:"max_conn_lifetime"`
		MaxConnIdleTime  string `yaml:"max_conn_idle_time"`
		DialTimeout      string `yaml:"dial_timeout"`
		StatementTimeout string `yaml:"statement_timeout"`
	} `yaml:"database"`

	Ingest struct {
		SourceDir     string `yaml:"source_dir"`
		ChunkSize     int    `yaml:"chunk_size"`
		Interval      string `yaml:"interval"`
		Watch         bool   `yaml:"watch"`
		WatchDebounce string `yaml:"watch_debounce"`
		SkipHidden    *bool  `yaml:"skip_hidden"`
	} `yaml:"ingest"`

	Parser struct {
		Strictness string `yaml:"strictness"`
	} `yaml:"parser"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Ingest: IngestConfig{
			SourceDir:     getEnv("SOURCE_DIR", ""),
			ChunkSize:     getEnvAsInt("INSERT_CHUNK_SIZE", 500),
			Interval:      getEnvAsDuration("RUN_INTERVAL", 10*time.Minute),
			Watch:         getEnvAsBool("WATCH_SOURCE_DIR", false),
			WatchDebounce: getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
			SkipHidden:    getEnvAsBool("SKIP_HIDDEN", true),
		},
		Parser: ParserConfig{
			Strictness: getEnv("PARSER_STRICTNESS", StrictnessLenient),
		},
		Health: HealthConfig{
			Addr: getEnv("HEALTH_ADDR", ":8088"),
		},
	}
}

// LoadConfigFile loads configuration from a YAML file, then applies
// environment-variable overrides on top of it. A missing path is not an
// error; the env-only configuration is returned.
func LoadConfigFile(path string) (*Config, error) {
	cfg := LoadConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("reading config file %s", path), err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parsing config file %s", path), err)
	}

	// File values fill in anything the environment did not set explicitly.
	if os.Getenv("DB_DRIVER") == "" && fc.Database.Driver != "" {
		cfg.Database.Driver = fc.Database.Driver
	}
	if os.Getenv("DB_URL") == "" && fc.Database.DSN != "" {
		cfg.Database.DSN = fc.Database.DSN
	}
	if os.Getenv("DB_MAX_CONNS") == "" && fc.Database.MaxConns != 0 {
		cfg.Database.MaxConns = fc.Database.MaxConns
	}
	if os.Getenv("DB_MIN_CONNS") == "" && fc.Database.MinConns != 0 {
		cfg.Database.MinConns = fc.Database.MinConns
	}
	if err := overrideDuration(&cfg.Database.MaxConnLifetime, "DB_MAX_CONN_LIFETIME", fc.Database.MaxConnLifetime); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Database.MaxConnIdleTime, "DB_MAX_CONN_IDLE_TIME", fc.Database.MaxConnIdleTime); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Database.DialTimeout, "DB_DIAL_TIMEOUT", fc.Database.DialTimeout); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Database.StatementTimeout, "DB_STATEMENT_TIMEOUT", fc.Database.StatementTimeout); err != nil {
		return nil, err
	}
	if os.Getenv("SOURCE_DIR") == "" && fc.Ingest.SourceDir != "" {
		cfg.Ingest.SourceDir = fc.Ingest.SourceDir
	}
	if os.Getenv("INSERT_CHUNK_SIZE") == "" && fc.Ingest.ChunkSize != 0 {
		cfg.Ingest.ChunkSize = fc.Ingest.ChunkSize
	}
	if err := overrideDuration(&cfg.Ingest.Interval, "RUN_INTERVAL", fc.Ingest.Interval); err != nil {
		return nil, err
	}
	if os.Getenv("WATCH_SOURCE_DIR") == "" && fc.Ingest.Watch {
		cfg.Ingest.Watch = true
	}
	if err := overrideDuration(&cfg.Ingest.WatchDebounce, "WATCH_DEBOUNCE", fc.Ingest.WatchDebounce); err != nil {
		return nil, err
	}
	if os.Getenv("SKIP_HIDDEN") == "" && fc.Ingest.SkipHidden != nil {
		cfg.Ingest.SkipHidden = *fc.Ingest.SkipHidden
	}
	if os.Getenv("PARSER_STRICTNESS") == "" && fc.Parser.Strictness != "" {
		cfg.Parser.Strictness = fc.Parser.Strictness
	}
	if os.Getenv("HEALTH_ADDR") == "" && fc.Health.Addr != "" {
		cfg.Health.Addr = fc.Health.Addr
	}

	return cfg, nil
}

func overrideDuration(dst *time.Duration, envKey, fileVal string) error {
	if os.Getenv(envKey) != "" || fileVal == "" {
		return nil
	}
	d, err := time.ParseDuration(fileVal)
	if err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("invalid duration for %s: %q", envKey, fileVal), err)
	}
	*dst = d
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver), ErrConfig)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrConfig)
	}
	if c.Ingest.SourceDir == "" {
		return NewAppError("CONFIG_ERROR", "SOURCE_DIR is required", ErrConfig)
	}
	if c.Ingest.ChunkSize <= 0 {
		return NewAppError("CONFIG_ERROR", "INSERT_CHUNK_SIZE must be positive", ErrConfig)
	}
	switch strings.ToLower(c.Parser.Strictness) {
	case StrictnessLenient, StrictnessStrict:
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown PARSER_STRICTNESS %q", c.Parser.Strictness), ErrConfig)
	}
	return nil
}
