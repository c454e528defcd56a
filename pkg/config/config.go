package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"FinFuse/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Logging     struct {
		Level          string        `yaml:"level"`
		Format         string        `yaml:"format"`
		Output         string        `yaml:"output"`
		CollectErrors  bool          `yaml:"collect_errors"`
		LogTopic       string        `yaml:"log_topic"`
		FlushInterval  time.Duration `yaml:"flush_interval"`
		CountThreshold int           `yaml:"count_threshold"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled     bool          `yaml:"enabled"`
		Path        string        `yaml:"path"`
		SlowRequest time.Duration `yaml:"slow_request"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"` // kafka or clickhouse
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`         // produced intents
		SignalsTopic string   `yaml:"signals_topic"` // consumed envelopes
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id"`
			OffsetReset string        `yaml:"offset_reset"`
			Workers     int           `yaml:"workers"`
			BufferSize  int           `yaml:"buffer_size"`
			RetryMax    int           `yaml:"retry_max"`
			BackoffMin  time.Duration `yaml:"backoff_min"`
			BackoffMax  time.Duration `yaml:"backoff_max"`
			DLQTopic    string        `yaml:"dlq_topic"`
			MinBytes    int           `yaml:"min_bytes"`
			MaxBytes    int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Feed struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		APIKey         string        `yaml:"api_key"`
		Tickers        []string      `yaml:"tickers"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Intake struct {
		BufferSize int     `yaml:"buffer_size"`
		MaxRPS     float64 `yaml:"max_rps"` // per-ticker throttle
	} `yaml:"intake"`
	ContextService struct {
		URL      string        `yaml:"url"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"context_service"`
	Cache struct {
		ResponseTTL time.Duration `yaml:"response_ttl"`
		Redis       struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Fusion struct {
		MinChartVolume    float64       `yaml:"min_chart_volume"`
		ImpactEpsilon     float64       `yaml:"impact_epsilon"`
		ImpactScaling     float64       `yaml:"impact_scaling"`
		HighImportance    float64       `yaml:"high_importance"`
		ChartDampening    float64       `yaml:"chart_dampening"`
		NewsAmplification float64       `yaml:"news_amplification"`
		DisagreementFloor float64       `yaml:"disagreement_floor"`
		HighVolatility    float64       `yaml:"high_volatility"`
		ConfidenceCeiling float64       `yaml:"confidence_ceiling"`
		SnapshotTTL       time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"fusion"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := new(Config)
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, then lets the environment override the
// settings that differ per deployment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	envString(&c.Feed.APIKey, "FEED_API_KEY")
	envList(&c.Feed.Tickers, "TICKERS")
	envString(&c.Backend.Type, "BACKEND")
	envList(&c.Kafka.Brokers, "KAFKA_BROKERS")
	envString(&c.Kafka.Topic, "KAFKA_TOPIC")
	envString(&c.Kafka.SignalsTopic, "KAFKA_SIGNALS_TOPIC")
	envString(&c.Cache.Redis.Addr, "REDIS_ADDR")
	envString(&c.ClickHouse.Host, "CLICKHOUSE_HOST")
	envString(&c.ContextService.URL, "CONTEXT_SERVICE_URL")
	envInt(&c.Server.Port, "SERVER_PORT")
	envInt(&c.Cache.Redis.DB, "REDIS_DB")

	return c, nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.Split(v, ",")
	}
}

func envInt(dst *int, key string) {
	*dst = util.ParseIntDefault(os.Getenv(key), *dst)
}

// Validate checks if the configuration is valid. Fusion thresholds are
// validated separately by the engine so the rules live in one place.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Feed.Enabled {
		if c.Feed.URL == "" {
			return fmt.Errorf("feed.url is required when the feed is enabled")
		}
		if len(c.Feed.Tickers) == 0 {
			return fmt.Errorf("feed.tickers cannot be empty when the feed is enabled")
		}
	}
	if c.Backend.Type == "kafka" && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required for the kafka backend")
	}
	return nil
}
