package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		// DigestTopic receives deduplicated warn/error digests when Kafka is
		// enabled. Empty disables the collector.
		DigestTopic    string        `yaml:"digest_topic" default:"mdk.logs"`
		DigestInterval time.Duration `yaml:"digest_interval" default:"30s"`
	} `yaml:"logging"`
	MDK struct {
		ArtifactDir      string `yaml:"artifact_dir" default:"trained_models" validate:"required"`
		Seed             int64  `yaml:"seed" default:"42"`
		LegacyGlobalSeed bool   `yaml:"legacy_global_seed"`
		DefaultInterval  string `yaml:"default_interval" default:"D"`
		RecentRows       int    `yaml:"recent_rows" default:"100" validate:"gte=60"`
		TrainWorkers     int    `yaml:"train_workers" default:"2" validate:"gte=1"`
		FitWorkers       int    `yaml:"fit_workers"`
	} `yaml:"mdk"`
	Kafka struct {
		Enabled     bool     `yaml:"enabled"`
		Brokers     []string `yaml:"brokers" validate:"required_if=Enabled true"`
		JobsTopic   string   `yaml:"jobs_topic" default:"mdk.training.jobs"`
		EventsTopic string   `yaml:"events_topic" default:"mdk.experiment.events"`
		Compression string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer    struct {
			RequiredAcks int           `yaml:"required_acks" default:"-1"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"10ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"mdk-trainer"`
			Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"8"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"mdk.training.jobs.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		CandlesTable string        `yaml:"candles_table" default:"candles_1m"`
		InitSchema   bool          `yaml:"init_schema"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		// MaxExecutionTime bounds candle scans server-side; 0 keeps the server setting.
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"120s"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled          bool          `yaml:"enabled"`
		Addr             string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
		Password         string        `yaml:"password"`
		DB               int           `yaml:"db"`
		PoolSize         int           `yaml:"pool_size" default:"10"`
		MinIdleConns     int           `yaml:"min_idle_conns" default:"2"`
		MemoryMaxKeys    int           `yaml:"memory_max_keys" default:"10000"`
		ExperimentPrefix string        `yaml:"experiment_prefix" default:"mdk:experiment:"`
		TTL              time.Duration `yaml:"ttl" default:"720h"`
		QueuePrefix      string        `yaml:"queue_prefix" default:"mdk:queue"`
		QueueRetryDelay  time.Duration `yaml:"queue_retry_delay" default:"10s"`
	} `yaml:"redis"`
	Serving struct {
		ModelCacheTTL   time.Duration `yaml:"model_cache_ttl" default:"30m"`
		TrainRatePerMin float64       `yaml:"train_rate_per_min" default:"30" validate:"gt=0"`
		TrainBurst      int           `yaml:"train_burst" default:"5" validate:"gte=1"`
	} `yaml:"serving"`
}

var validate = validator.New()

// Default returns a configuration filled from `default` tags only.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. Keys absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from the defaults.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("MDK_ARTIFACT_DIR"); v != "" {
		c.MDK.ArtifactDir = v
	}
	if v := os.Getenv("MDK_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MDK_SEED: %w", err)
		}
		c.MDK.Seed = seed
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && c.Kafka.JobsTopic == c.Kafka.EventsTopic {
		return fmt.Errorf("kafka.jobs_topic and kafka.events_topic must differ")
	}
	return nil
}
