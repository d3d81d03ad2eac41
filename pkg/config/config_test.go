package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: development
kafka:
  brokers: ["localhost:9092"]
trend_api:
  base_url: "http://localhost:9100"
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Server.Port != 8080 {
		t.Fatalf("server port = %d, want 8080", c.Server.Port)
	}
	if c.Backend.Type != "kafka" {
		t.Fatalf("backend = %q, want kafka", c.Backend.Type)
	}
	if c.Kafka.Topic != "confirmed-signals" {
		t.Fatalf("topic = %q", c.Kafka.Topic)
	}
	if c.ClickHouse.Table != "signal_decisions" {
		t.Fatalf("table = %q", c.ClickHouse.Table)
	}
	if c.Engine.Indicator.RSIPeriod != 14 || c.Engine.Indicator.CheckMode != "log" {
		t.Fatalf("indicator defaults not applied: %+v", c.Engine.Indicator)
	}
	if c.Engine.Consensus.BaseTimeout != 80*time.Millisecond {
		t.Fatalf("base timeout = %v", c.Engine.Consensus.BaseTimeout)
	}
	if got := c.TimeframeList(); len(got) != 3 || got[0] != "15m" {
		t.Fatalf("default timeframes = %v", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, `
environment: production
backend:
  type: clickhouse
trend_api:
  base_url: "http://trend:9100"
  retries: 3
engine:
  indicator:
    rsi_period: 21
    check_mode: strict
  consensus:
    timeframes: ["1h", "1d"]
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Engine.Indicator.RSIPeriod != 21 || c.Engine.Indicator.CheckMode != "strict" {
		t.Fatalf("overrides not applied: %+v", c.Engine.Indicator)
	}
	if got := c.TimeframeList(); len(got) != 2 || got[0] != "1h" {
		t.Fatalf("timeframes = %v", got)
	}
	// clickhouse backend does not require kafka brokers
	if c.Backend.Type != "clickhouse" {
		t.Fatalf("backend = %q", c.Backend.Type)
	}
}

func TestLoadMissingEnvironment(t *testing.T) {
	if _, err := Load(writeConfig(t, `
kafka:
  brokers: ["localhost:9092"]
trend_api:
  base_url: "http://localhost:9100"
`)); err == nil {
		t.Fatalf("expected validation error for missing environment")
	}
}

func TestLoadKafkaBackendNeedsBrokers(t *testing.T) {
	if _, err := Load(writeConfig(t, `
environment: development
trend_api:
  base_url: "http://localhost:9100"
`)); err == nil {
		t.Fatalf("expected error for kafka backend without brokers")
	}
}

func TestLoadRejectsBadCheckMode(t *testing.T) {
	if _, err := Load(writeConfig(t, minimalConfig+`
engine:
  indicator:
    check_mode: sometimes
`)); err == nil {
		t.Fatalf("expected error for unknown check mode")
	}
}

func TestLoadRejectsTooManyMinTimeframes(t *testing.T) {
	if _, err := Load(writeConfig(t, minimalConfig+`
engine:
  consensus:
    timeframes: ["1h"]
    min_timeframes: 2
`)); err == nil {
		t.Fatalf("expected error when min timeframes exceeds the configured list")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("EXCHANGE_API_KEY", "test-key")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TREND_API_URL", "http://override:9100")

	c, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Exchange.APIKey != "test-key" {
		t.Fatalf("api key override not applied")
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.TrendAPI.BaseURL != "http://override:9100" {
		t.Fatalf("trend url = %q", c.TrendAPI.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
