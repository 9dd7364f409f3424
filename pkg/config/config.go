// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Search, Upload, Postgres, Kafka, Redis, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Upload   UploadConfig   `yaml:"upload"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. WriteRateLimit caps uploads and
// deletes per client per minute; 0 disables it. An empty CORSOrigins
// disables CORS headers.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"requestTimeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
	WriteRateLimit  int           `yaml:"writeRateLimit" validate:"gte=0"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// IndexConfig controls where and how the engine keeps its index. An empty
// DataDir keeps everything in memory.
type IndexConfig struct {
	DataDir         string        `yaml:"dataDir"`
	Analyzer        string        `yaml:"analyzer" validate:"oneof=standard english"`
	Fields          []string      `yaml:"fields" validate:"required,min=1,dive,required"`
	ReadOnly        bool          `yaml:"readOnly"`
	RefreshInterval time.Duration `yaml:"refreshInterval" validate:"gte=0"`
}

// SearchConfig controls query execution limits, ranking parameters and
// snippet rendering.
type SearchConfig struct {
	DefaultLimit   int           `yaml:"defaultLimit" validate:"min=1"`
	MaxResults     int           `yaml:"maxResults" validate:"min=1,gtefield=DefaultLimit"`
	Timeout        time.Duration `yaml:"timeout" validate:"gte=0"`
	SlowQuery      time.Duration `yaml:"slowQuery" validate:"gte=0"`
	K1             float64       `yaml:"k1" validate:"gte=0"`
	B              float64       `yaml:"b" validate:"gte=0,lte=1"`
	SnippetField   string        `yaml:"snippetField" validate:"required"`
	MaxFragments   int           `yaml:"maxFragments" validate:"min=1"`
	FragmentTokens int           `yaml:"fragmentTokens" validate:"min=1"`
	PreTag         string        `yaml:"preTag"`
	PostTag        string        `yaml:"postTag"`
	CacheEnabled   bool          `yaml:"cacheEnabled"`
}

// UploadConfig controls accepted uploads.
type UploadConfig struct {
	Dir               string   `yaml:"dir" validate:"required"`
	MaxBytes          int64    `yaml:"maxBytes" validate:"min=1"`
	AllowedExtensions []string `yaml:"allowedExtensions" validate:"required,min=1,dive,required"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	DocumentDelete string `yaml:"documentDelete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"min=1,max=65535"`
}

var validate = validator.New()

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		case "min", "gte", "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must not exceed %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, e.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			WriteRateLimit:  60,
		},
		Index: IndexConfig{
			DataDir:         "data/index",
			Analyzer:        "standard",
			Fields:          []string{"filename", "content"},
			RefreshInterval: 2 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			MaxResults:     100,
			Timeout:        5 * time.Second,
			SlowQuery:      500 * time.Millisecond,
			K1:             1.2,
			B:              0.75,
			SnippetField:   "content",
			MaxFragments:   3,
			FragmentTokens: 20,
			PreTag:         "<b>",
			PostTag:        "</b>",
			CacheEnabled:   true,
		},
		Upload: UploadConfig{
			Dir:               "uploads",
			MaxBytes:          16 << 20,
			AllowedExtensions: []string{"txt", "pdf", "doc", "docx", "md"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "docsearch-indexer",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				DocumentDelete: "document-delete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setList := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.Split(v, ",")
		}
	}

	setInt("SP_SERVER_PORT", &cfg.Server.Port)
	setInt("SP_SERVER_WRITE_RATE_LIMIT", &cfg.Server.WriteRateLimit)
	setList("SP_SERVER_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	if v, ok := os.LookupEnv("SP_INDEX_DATA_DIR"); ok {
		cfg.Index.DataDir = v
	}
	setString("SP_INDEX_ANALYZER", &cfg.Index.Analyzer)
	setList("SP_INDEX_FIELDS", &cfg.Index.Fields)
	setBool("SP_INDEX_READ_ONLY", &cfg.Index.ReadOnly)

	setInt("SP_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("SP_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)
	setBool("SP_SEARCH_CACHE_ENABLED", &cfg.Search.CacheEnabled)

	setString("SP_UPLOAD_DIR", &cfg.Upload.Dir)
	if v := os.Getenv("SP_UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Upload.MaxBytes = n
		}
	}

	setString("SP_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("SP_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("SP_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("SP_POSTGRES_USER", &cfg.Postgres.User)
	setString("SP_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("SP_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	setList("SP_KAFKA_BROKERS", &cfg.Kafka.Brokers)

	setString("SP_REDIS_ADDR", &cfg.Redis.Addr)
	setString("SP_REDIS_PASSWORD", &cfg.Redis.Password)

	setString("SP_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("SP_LOGGING_FORMAT", &cfg.Logging.Format)

	setBool("SP_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("SP_METRICS_PORT", &cfg.Metrics.Port)
}
