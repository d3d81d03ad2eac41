package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string `yaml:"type" default:"kafka" validate:"oneof=kafka clickhouse"`
		EmitRejected bool   `yaml:"emit_rejected"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"confirmed-signals"`
		LogsTopic    string   `yaml:"logs_topic"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic" default:"market-ticks"`
			GroupID    string        `yaml:"group_id" default:"sigpulse-engine"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table" default:"signal_decisions"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Exchange struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"exchange"`
	TrendAPI struct {
		BaseURL string        `yaml:"base_url" validate:"required"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
		Retries int           `yaml:"retries" default:"1" validate:"gte=0,lte=5"`
	} `yaml:"trend_api"`
	Engine struct {
		Indicator struct {
			RSIPeriod      int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
			StochPeriod    int     `yaml:"stoch_period" default:"14" validate:"gt=0"`
			KPeriod        int     `yaml:"k_period" default:"3" validate:"gt=0"`
			DPeriod        int     `yaml:"d_period" default:"3" validate:"gt=0"`
			CheckMode      string  `yaml:"check_mode" default:"log" validate:"oneof=off log strict"`
			CheckInterval  int64   `yaml:"check_interval" default:"512" validate:"gt=0"`
			CheckTolerance float64 `yaml:"check_tolerance" default:"0.01" validate:"gt=0"`
		} `yaml:"indicator"`
		Volume struct {
			Lookback        int           `yaml:"lookback" default:"50" validate:"gt=1"`
			PercentileDepth int           `yaml:"percentile_depth" default:"500" validate:"gt=1"`
			RefreshInterval time.Duration `yaml:"refresh_interval" default:"5s"`
			BuyThreshold    float64       `yaml:"buy_threshold" default:"1.2" validate:"gt=0"`
			SellThreshold   float64       `yaml:"sell_threshold" default:"1.5" validate:"gt=0"`
			HighConfidence  float64       `yaml:"high_confidence" default:"2.0" validate:"gt=0"`
		} `yaml:"volume"`
		Consensus struct {
			Timeframes     []string      `yaml:"timeframes"`
			MaxWorkers     int           `yaml:"max_workers" default:"4" validate:"gt=0"`
			BaseTimeout    time.Duration `yaml:"base_timeout" default:"80ms"`
			TimeoutBuffer  time.Duration `yaml:"timeout_buffer" default:"20ms"`
			LatencyWindow  int           `yaml:"latency_window" default:"50" validate:"gt=0"`
			Threshold      float64       `yaml:"threshold" default:"0.75" validate:"gt=0,lte=1"`
			HighConfidence float64       `yaml:"high_confidence" default:"0.9" validate:"gt=0,lte=1"`
			MinTimeframes  int           `yaml:"min_timeframes" default:"2" validate:"gt=0"`
		} `yaml:"consensus"`
		RequireVolumeConfirmation bool `yaml:"require_volume_confirmation"`
	} `yaml:"engine"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads a YAML configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Exchange.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("TREND_API_URL"); v != "" {
		c.TrendAPI.BaseURL = v
	}
	if v := os.Getenv("TREND_API_KEY"); v != "" {
		c.TrendAPI.APIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// Validate checks structural tags plus cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty with kafka backend")
	}
	if c.Engine.Consensus.MinTimeframes > len(c.TimeframeList()) {
		return fmt.Errorf("engine.consensus.min_timeframes exceeds configured timeframes")
	}
	return nil
}

// TimeframeList returns the configured consensus timeframes, defaulting to
// 15m, 1h and 1d when unset.
func (c *Config) TimeframeList() []string {
	if len(c.Engine.Consensus.Timeframes) > 0 {
		return c.Engine.Consensus.Timeframes
	}
	return []string{"15m", "1h", "1d"}
}
