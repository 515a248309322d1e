package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"basket-insights/internal/dataset"
)

const envPrefix = "BASKET"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Mining   MiningConfig   `yaml:"mining"`
	Cache    CacheConfig    `yaml:"cache"`
	Logger   LoggerConfig   `yaml:"logger"`
	Security SecurityConfig `yaml:"security"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type DatasetConfig struct {
	Path     string `yaml:"path" split_words:"true"`
	Encoding string `yaml:"encoding" split_words:"true"`
	Sheet    string `yaml:"sheet" split_words:"true"`
	Workers  int    `yaml:"workers" split_words:"true"`
}

type MiningConfig struct {
	MinSupport    float64 `yaml:"min_support" split_words:"true"`
	Metric        string  `yaml:"metric" split_words:"true"`
	MinThreshold  float64 `yaml:"min_threshold" split_words:"true"`
	MaxLen        int     `yaml:"max_len" split_words:"true"`
	TopRules      int     `yaml:"top_rules" split_words:"true"`
	TopItemsets   int     `yaml:"top_itemsets" split_words:"true"`
	Workers       int     `yaml:"workers" split_words:"true"`
	HistogramBins int     `yaml:"histogram_bins" split_words:"true"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Dir     string `yaml:"dir" split_words:"true"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"enable_rate_limit" split_words:"true"`
	RateLimitRPS    int      `yaml:"rate_limit_rps" split_words:"true"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" split_words:"true"`
	AllowedOrigins  []string `yaml:"allowed_origins" split_words:"true"`
	TrustedProxies  []string `yaml:"trusted_proxies" split_words:"true"`
}

// Default returns the configuration used when neither a file nor the
// environment override a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Dataset: DatasetConfig{
			Path:     "online_retail_II.csv",
			Encoding: dataset.DefaultEncoding,
			Workers:  10,
		},
		Mining: MiningConfig{
			MinSupport:    0.01,
			Metric:        "confidence",
			MinThreshold:  0.6,
			TopRules:      10,
			TopItemsets:   10,
			Workers:       10,
			HistogramBins: 50,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".cache",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and finally BASKET_* environment variables, in that order of
// precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Validate reports the first setting outside its allowed range.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}

	if !dataset.SupportedEncoding(c.Dataset.Encoding) {
		return fmt.Errorf("invalid dataset encoding %q, must be one of: %s", c.Dataset.Encoding, strings.Join(dataset.Encodings(), ", "))
	}

	if c.Mining.MinSupport <= 0 || c.Mining.MinSupport > 1 {
		return fmt.Errorf("min support must be in (0, 1], got %g", c.Mining.MinSupport)
	}

	validMetrics := []string{"support", "confidence", "lift", "leverage", "conviction", "zhangs_metric"}
	if !slices.Contains(validMetrics, c.Mining.Metric) {
		return fmt.Errorf("invalid rule metric %q, must be one of: %s", c.Mining.Metric, strings.Join(validMetrics, ", "))
	}

	if c.Mining.MaxLen < 0 {
		return fmt.Errorf("max itemset length cannot be negative")
	}

	if c.Mining.TopRules <= 0 || c.Mining.TopItemsets <= 0 {
		return fmt.Errorf("top rules and top itemsets must be positive")
	}

	if c.Mining.HistogramBins <= 0 {
		return fmt.Errorf("histogram bins must be positive")
	}

	if c.Mining.Workers <= 0 || c.Dataset.Workers <= 0 {
		return fmt.Errorf("worker counts must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
