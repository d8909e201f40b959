package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" env:"APP_ENV"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Engine      EngineConfig     `yaml:"engine"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" default:"8080" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	// Must exceed engine.total_budget or slow decisions are cut off mid-response.
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"150s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"30s"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" env:"LOG_LEVEL"`
	Format string `yaml:"format" default:"console" env:"LOG_FORMAT"`
	Output string `yaml:"output" default:"stdout"`
}

// RunnerConfig is one way of starting the engine.
type RunnerConfig struct {
	Runtime string   `yaml:"runtime"`
	Args    []string `yaml:"args"`
	Entry   string   `yaml:"entry"`
}

type EngineConfig struct {
	RootDir        string        `yaml:"root_dir" default:"." env:"ENGINE_ROOT_DIR"`
	Compiled       RunnerConfig  `yaml:"compiled"`
	Interpreted    RunnerConfig  `yaml:"interpreted"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" default:"60s" env:"ENGINE_ATTEMPT_TIMEOUT"`
	TotalBudget    time.Duration `yaml:"total_budget" default:"120s" env:"ENGINE_TOTAL_BUDGET"`
	WaitDelay      time.Duration `yaml:"wait_delay" default:"2s"`
	Env            []string      `yaml:"env" env:"ENGINE_ENV" envSeparator:";"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled" env:"KAFKA_ENABLED"`
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	RequestTopic string   `yaml:"request_topic" default:"agent.decision.requests" env:"KAFKA_REQUEST_TOPIC"`
	ResultTopic  string   `yaml:"result_topic" default:"agent.decision.results" env:"KAFKA_RESULT_TOPIC"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID         string        `yaml:"group_id" default:"emerald-agent" env:"KAFKA_GROUP_ID"`
		AutoOffsetReset string        `yaml:"auto_offset_reset" default:"latest"`
		Workers         int           `yaml:"workers" default:"4"`
		BufferSize      int           `yaml:"buffer_size" default:"16"`
		RetryMax        int           `yaml:"retry_max" default:"2"`
		BackoffMin      time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax      time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic        string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled" env:"CLICKHOUSE_ENABLED"`
	Host             string        `yaml:"host" default:"localhost" env:"CLICKHOUSE_HOST"`
	Port             int           `yaml:"port" default:"9000" env:"CLICKHOUSE_PORT"`
	Database         string        `yaml:"database" default:"emerald"`
	Table            string        `yaml:"table" default:"engine_attempts"`
	User             string        `yaml:"user" default:"default" env:"CLICKHOUSE_USER"`
	Password         string        `yaml:"password" env:"CLICKHOUSE_PASSWORD"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

// RedisConfig drives the aggregated error-log publisher.
type RedisConfig struct {
	Enabled       bool          `yaml:"enabled" env:"REDIS_ENABLED"`
	Addr          string        `yaml:"addr" default:"localhost:6379" env:"REDIS_ADDR"`
	Password      string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB            int           `yaml:"db"`
	KeyPrefix     string        `yaml:"key_prefix" default:"emerald:logs"`
	Topic         string        `yaml:"topic" default:"errors"`
	MaxLen        int64         `yaml:"max_len" default:"10000"`
	FlushInterval time.Duration `yaml:"flush_interval" default:"30s"`
	FlushCount    int           `yaml:"flush_count" default:"100"`
}

// Load reads a YAML configuration file on top of the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console', got '%s'", c.Log.Format)
	}

	e := c.Engine
	if e.RootDir == "" {
		return fmt.Errorf("engine.root_dir is required")
	}
	if e.Interpreted.Runtime == "" || e.Interpreted.Entry == "" {
		return fmt.Errorf("engine.interpreted.runtime and engine.interpreted.entry are required")
	}
	if e.Compiled.Entry != "" && e.Compiled.Runtime == "" {
		return fmt.Errorf("engine.compiled.runtime is required when engine.compiled.entry is set")
	}
	if e.AttemptTimeout <= 0 {
		return fmt.Errorf("engine.attempt_timeout must be positive")
	}
	if e.TotalBudget < e.AttemptTimeout {
		return fmt.Errorf("engine.total_budget (%s) must be at least engine.attempt_timeout (%s)", e.TotalBudget, e.AttemptTimeout)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.RequestTopic == "" || c.Kafka.ResultTopic == "" {
			return fmt.Errorf("kafka.request_topic and kafka.result_topic are required")
		}
		if c.Kafka.RequestTopic == c.Kafka.ResultTopic {
			return fmt.Errorf("kafka.result_topic must differ from kafka.request_topic")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
