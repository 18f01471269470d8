package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		StaticDir       string        `yaml:"static_dir"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxAgeDays int    `yaml:"max_age_days"`
		MaxBackups int    `yaml:"max_backups"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Provider struct {
		Type      string        `yaml:"type"` // moex, bybit, binance, clickhouse
		BaseURL   string        `yaml:"base_url"`
		Timeout   time.Duration `yaml:"timeout"`
		Category  string        `yaml:"category"` // bybit: spot, linear
		APIKey    string        `yaml:"api_key"`
		SecretKey string        `yaml:"secret_key"`
	} `yaml:"provider"`
	Instruments []Instrument `yaml:"instruments"`
	RSI         struct {
		Period           int               `yaml:"period"`
		RefreshInterval  time.Duration     `yaml:"refresh_interval"`
		Workers          int               `yaml:"workers"`
		UpstreamRPS      float64           `yaml:"upstream_rps"`
		CycleTimeout     time.Duration     `yaml:"cycle_timeout"`
		DisplayUTCOffset time.Duration     `yaml:"display_utc_offset"`
		Timeframes       []TimeframeConfig `yaml:"timeframes"`
	} `yaml:"rsi"`
	Quotes struct {
		Source string        `yaml:"source"` // provider, stream, none
		MaxAge time.Duration `yaml:"max_age"`
	} `yaml:"quotes"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		SnapshotTopic string   `yaml:"snapshot_topic"`
		TicksTopic    string   `yaml:"ticks_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"finnhub"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Key      string        `yaml:"key"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
}

// Instrument maps a display name to an upstream identifier.
type Instrument struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// TimeframeConfig overrides one row of the provider's default timeframe table.
type TimeframeConfig struct {
	Name         string        `yaml:"name"`
	Interval     string        `yaml:"interval"`
	LookbackDays int           `yaml:"lookback_days"`
	Bucket       time.Duration `yaml:"bucket"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("env override: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := getenv("INSTRUMENTS"); v != "" {
		ins, err := ParseInstruments(v)
		if err != nil {
			return err
		}
		c.Instruments = ins
	}
	if v := getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		c.RSI.RefreshInterval = d
	}
	if v := getenv("HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("BINANCE_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := getenv("BINANCE_SECRET_KEY"); v != "" {
		c.Provider.SecretKey = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// ParseInstruments reads "Name=ID,Name2=ID2". A bare "ID" uses the ID as name.
func ParseInstruments(s string) ([]Instrument, error) {
	var out []Instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, id, found := strings.Cut(part, "=")
		if !found {
			id = name
		}
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if name == "" || id == "" {
			return nil, fmt.Errorf("bad instrument %q", part)
		}
		out = append(out, Instrument{Name: name, ID: id})
	}
	return out, nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Provider.Type == "" {
		c.Provider.Type = "moex"
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 10 * time.Second
	}
	if c.Provider.Category == "" {
		c.Provider.Category = "spot"
	}
	if c.RSI.Period == 0 {
		c.RSI.Period = 14
	}
	if c.RSI.RefreshInterval == 0 {
		c.RSI.RefreshInterval = 60 * time.Second
	}
	if c.RSI.Workers == 0 {
		c.RSI.Workers = 4
	}
	if c.RSI.UpstreamRPS == 0 {
		c.RSI.UpstreamRPS = 20
	}
	if c.RSI.CycleTimeout == 0 {
		c.RSI.CycleTimeout = 5 * time.Minute
	}
	if c.RSI.DisplayUTCOffset == 0 {
		c.RSI.DisplayUTCOffset = 3 * time.Hour
	}
	if c.Quotes.Source == "" {
		c.Quotes.Source = "provider"
	}
	if c.Quotes.MaxAge == 0 {
		c.Quotes.MaxAge = 2 * time.Minute
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "gzip"
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "rsiboard"
	}
	if c.Finnhub.WebSocketURL == "" {
		c.Finnhub.WebSocketURL = "wss://ws.finnhub.io"
	}
	if c.Finnhub.ReconnectDelay == 0 {
		c.Finnhub.ReconnectDelay = 5 * time.Second
	}
	if c.Finnhub.PingInterval == 0 {
		c.Finnhub.PingInterval = 30 * time.Second
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "rsiboard:snapshot"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Provider.Type {
	case "moex", "bybit", "binance", "clickhouse":
	default:
		return fmt.Errorf("provider.type must be one of moex, bybit, binance, clickhouse, got '%s'", c.Provider.Type)
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Instruments))
	for _, in := range c.Instruments {
		if in.Name == "" || in.ID == "" {
			return fmt.Errorf("instrument requires name and id, got %+v", in)
		}
		if _, dup := seen[in.Name]; dup {
			return fmt.Errorf("duplicate instrument name %q", in.Name)
		}
		seen[in.Name] = struct{}{}
	}
	if c.RSI.Period < 1 {
		return fmt.Errorf("rsi.period must be positive")
	}
	if c.RSI.RefreshInterval < time.Second {
		return fmt.Errorf("rsi.refresh_interval must be at least 1s")
	}
	if c.RSI.Workers < 1 {
		return fmt.Errorf("rsi.workers must be positive")
	}
	tfSeen := make(map[string]struct{}, len(c.RSI.Timeframes))
	for _, tf := range c.RSI.Timeframes {
		if tf.Name == "" || tf.Interval == "" {
			return fmt.Errorf("rsi.timeframes entries require name and interval")
		}
		if _, dup := tfSeen[tf.Name]; dup {
			return fmt.Errorf("duplicate timeframe name %q", tf.Name)
		}
		tfSeen[tf.Name] = struct{}{}
		if tf.LookbackDays <= 0 {
			return fmt.Errorf("rsi.timeframes[%s].lookback_days must be positive", tf.Name)
		}
		if tf.Bucket < 0 {
			return fmt.Errorf("rsi.timeframes[%s].bucket must not be negative", tf.Name)
		}
	}
	switch c.Quotes.Source {
	case "provider", "stream", "none":
	default:
		return fmt.Errorf("quotes.source must be provider, stream or none, got '%s'", c.Quotes.Source)
	}
	if c.Quotes.Source == "provider" && c.Provider.Type == "clickhouse" {
		return fmt.Errorf("quotes.source=provider is not supported for the clickhouse provider")
	}
	if c.Quotes.Source == "stream" && c.Finnhub.APIKey == "" && c.Kafka.TicksTopic == "" {
		return fmt.Errorf("quotes.source=stream needs finnhub.api_key or kafka.ticks_topic")
	}
	if (c.Kafka.SnapshotTopic != "" || c.Kafka.TicksTopic != "") && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when a kafka topic is set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
