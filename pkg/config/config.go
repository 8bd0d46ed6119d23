package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"SignalDesk/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string         `yaml:"environment" default:"development"`
	Server      ServerConfig   `yaml:"server"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Log         LogConfig      `yaml:"log"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Datasets    DatasetsConfig `yaml:"datasets"`
	Poll        PollConfig     `yaml:"poll"`
	Notify      NotifyConfig   `yaml:"notify"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Ticker      TickerConfig   `yaml:"ticker"`
	Cache       CacheConfig    `yaml:"cache"`
	Kafka       KafkaConfig    `yaml:"kafka"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	TrustProxy      bool          `yaml:"trust_proxy"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"console"`
	Output     string `yaml:"output" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"50"`
	MaxBackups int    `yaml:"max_backups" default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" default:"7"`
	Compress   bool   `yaml:"compress"`
}

// UpstreamConfig points at the analytics data service.
// When Start and End are set they pin the query window; otherwise Lookback is used.
type UpstreamConfig struct {
	BaseURL  string        `yaml:"base_url" default:"http://127.0.0.1:8000"`
	Path     string        `yaml:"path" default:"/data"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	Lookback time.Duration `yaml:"lookback" default:"24h"`
	Start    string        `yaml:"start"`
	End      string        `yaml:"end"`
}

type DatasetsConfig struct {
	Supported []string `yaml:"supported" default:"[\"b7\",\"b8\"]"`
	Default   string   `yaml:"default" default:"b7"`
}

type PollConfig struct {
	Interval      time.Duration `yaml:"interval" default:"30s"`
	FallbackCount int           `yaml:"fallback_count" default:"50"`
	TickTimeout   time.Duration `yaml:"tick_timeout" default:"25s"`
}

type NotifyConfig struct {
	Enabled   bool            `yaml:"enabled" default:"true"`
	Timezone  string          `yaml:"timezone" default:"Local"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Capacity     float64 `yaml:"capacity" default:"5"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"0.5"`
}

type TelegramConfig struct {
	BotToken  string        `yaml:"bot_token"`
	ChatID    string        `yaml:"chat_id"`
	APIServer string        `yaml:"api_server" default:"https://api.telegram.org"`
	Timeout   time.Duration `yaml:"timeout" default:"10s"`
}

type TickerConfig struct {
	Enabled           bool          `yaml:"enabled" default:"true"`
	WebSocketURL      string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws"`
	Symbol            string        `yaml:"symbol" default:"btcusdt"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"3s"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay" default:"3s"`
	ReadTimeout       time.Duration `yaml:"read_timeout" default:"60s"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" default:"10s"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend" default:"memory"`
	TTL     time.Duration `yaml:"ttl" default:"15s"`
	// ResultTTL bounds how long the latest poll result stays readable.
	ResultTTL time.Duration `yaml:"result_ttl" default:"10m"`
	MaxSize   int           `yaml:"max_size" default:"256"`
	Redis     RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"signaldesk"`

	PoolSize     int           `yaml:"pool_size" default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
	PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"signaldesk.signals.new"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"100ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := getenv("DATASET"); v != "" {
		c.Datasets.Default = v
	}
	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	c.Notify.Enabled = util.ParseBoolDefault(getenv("NOTIFY_ENABLED"), c.Notify.Enabled)
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if ok {
			c.Cache.Redis.Port = util.ParseIntDefault(port, c.Cache.Redis.Port)
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if (c.Upstream.Start == "") != (c.Upstream.End == "") {
		return fmt.Errorf("upstream.start and upstream.end must be set together")
	}
	if c.Upstream.Start != "" {
		from, ok1 := util.ParseTime(c.Upstream.Start)
		to, ok2 := util.ParseTime(c.Upstream.End)
		if !ok1 || !ok2 {
			return fmt.Errorf("upstream.start/end must be timestamps, got '%s'..'%s'", c.Upstream.Start, c.Upstream.End)
		}
		if to.Before(from) {
			return fmt.Errorf("upstream.end is before upstream.start")
		}
	}
	if len(c.Datasets.Supported) == 0 {
		return fmt.Errorf("datasets.supported cannot be empty")
	}
	found := false
	for _, ds := range c.Datasets.Supported {
		if ds == c.Datasets.Default {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("datasets.default '%s' is not in datasets.supported", c.Datasets.Default)
	}
	if c.Poll.Interval < time.Second {
		return fmt.Errorf("poll.interval must be at least 1s, got %s", c.Poll.Interval)
	}
	if c.Poll.FallbackCount < 0 {
		return fmt.Errorf("poll.fallback_count cannot be negative")
	}
	if c.Ticker.Enabled {
		if c.Ticker.WebSocketURL == "" || c.Ticker.Symbol == "" {
			return fmt.Errorf("ticker.websocket_url and ticker.symbol are required when ticker is enabled")
		}
		if c.Ticker.ReconnectDelay <= 0 {
			return fmt.Errorf("ticker.reconnect_delay must be positive")
		}
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
