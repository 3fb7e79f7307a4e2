package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeLive = "live"
	ModeTest = "test"
)

type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	HTTP    HTTPConfig    `yaml:"http"`
	Stream  StreamConfig  `yaml:"stream"`
	Archive ArchiveConfig `yaml:"archive"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type GatewayConfig struct {
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	Mode           string        `yaml:"mode"`
	APIKey         string        `yaml:"api_key"`
	APISecret      string        `yaml:"api_secret"`
	RecvWindow     time.Duration `yaml:"recv_window"`
	ClientOrderIDs bool          `yaml:"client_order_ids"`
}

// Live reports whether the gateway should start against production endpoints.
func (g GatewayConfig) Live() bool {
	return strings.EqualFold(g.Mode, ModeLive)
}

type HTTPConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	LocalIP        string               `yaml:"local_ip"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type StreamConfig struct {
	Streams          []string      `yaml:"streams"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	EventBuffer      int           `yaml:"event_buffer"`
	UserData         bool          `yaml:"user_data"`
}

type ArchiveConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	S3       S3Config       `yaml:"s3"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type S3Config struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Prefix          string        `yaml:"prefix"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	PathStyle       bool          `yaml:"path_style"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	MaxBufferSize   int           `yaml:"max_buffer_size"`
}

type MetricsConfig struct {
	UsedWeight   bool             `yaml:"used_weight"`
	OrderLatency bool             `yaml:"order_latency"`
	StreamDrops  bool             `yaml:"stream_drops"`
	CloudWatch   CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func defaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			RecvWindow: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout: 10 * time.Second,
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    16,
				MaxConnsPerHost: 16,
				IdleConnTimeout: 90 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         10,
			},
		},
		Stream: StreamConfig{
			HandshakeTimeout: 10 * time.Second,
			EventBuffer:      1024,
		},
		Archive: ArchiveConfig{
			S3: S3Config{
				FlushInterval: time.Minute,
				MaxBufferSize: 500,
			},
		},
		Metrics: MetricsConfig{
			UsedWeight:   true,
			OrderLatency: true,
			StreamDrops:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		config.Gateway.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		config.Gateway.APISecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_MODE"); v != "" {
		config.Gateway.Mode = strings.TrimSpace(v)
	}
	config.Gateway.Mode = strings.ToLower(strings.TrimSpace(config.Gateway.Mode))
	if config.Gateway.Mode == "" {
		config.Gateway.Mode = DefaultMode()
	}

	if v := os.Getenv("DATABASE_URL"); v != "" && config.Archive.Postgres.Enabled {
		config.Archive.Postgres.DSN = strings.TrimSpace(v)
	}

	if config.Archive.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Archive.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Archive.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Archive.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Archive.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Archive.S3.Bucket = strings.TrimSpace(config.Archive.S3.Bucket)
}

func validateConfig(cfg *Config) error {
	if cfg.Gateway.Name == "" {
		return fmt.Errorf("gateway.name is required")
	}
	if cfg.Gateway.Version == "" {
		return fmt.Errorf("gateway.version is required")
	}
	if cfg.Gateway.Mode != ModeLive && cfg.Gateway.Mode != ModeTest {
		return fmt.Errorf("gateway.mode must be '%s' or '%s', got '%s'", ModeLive, ModeTest, cfg.Gateway.Mode)
	}
	if cfg.Gateway.RecvWindow < 0 || cfg.Gateway.RecvWindow > time.Minute {
		return fmt.Errorf("gateway.recv_window must be between 0 and 60s")
	}

	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be greater than 0")
	}
	if cfg.HTTP.LocalIP != "" && net.ParseIP(cfg.HTTP.LocalIP) == nil {
		return fmt.Errorf("http.local_ip '%s' is not a valid IP address", cfg.HTTP.LocalIP)
	}
	if cfg.HTTP.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("http.rate_limit.requests_per_second must not be negative")
	}
	if cfg.HTTP.RateLimit.RequestsPerSecond > 0 && cfg.HTTP.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("http.rate_limit.burst_size must be greater than 0")
	}

	if cfg.Stream.EventBuffer <= 0 {
		return fmt.Errorf("stream.event_buffer must be greater than 0")
	}
	if cfg.Stream.UserData && (cfg.Gateway.APIKey == "") {
		return fmt.Errorf("gateway.api_key is required when stream.user_data is enabled")
	}

	if cfg.Archive.Postgres.Enabled && cfg.Archive.Postgres.DSN == "" {
		return fmt.Errorf("archive.postgres.dsn is required when postgres is enabled")
	}
	if cfg.Archive.SQLite.Enabled && cfg.Archive.SQLite.Path == "" {
		return fmt.Errorf("archive.sqlite.path is required when sqlite is enabled")
	}

	if cfg.Archive.S3.Enabled {
		if cfg.Archive.S3.Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required when S3 is enabled")
		}
		if cfg.Archive.S3.Region == "" {
			return fmt.Errorf("archive.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Archive.S3.Bucket) {
			return fmt.Errorf("archive.s3.bucket '%s' is invalid", cfg.Archive.S3.Bucket)
		}
		if cfg.Archive.S3.FlushInterval <= 0 {
			return fmt.Errorf("archive.s3.flush_interval must be greater than 0")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
