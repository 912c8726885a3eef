package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"barrace/internal/interpolation"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Cache    CacheConfig    `yaml:"cache" envconfig:"CACHE"`
	Engine   EngineDefaults `yaml:"engine" envconfig:"ENGINE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" default:"33554432"`
	// AllowedOrigins lists browser origins for CORS and WebSocket upgrades.
	// Empty allows same-origin requests only.
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"10"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/barrace.log"`
}

// CacheConfig tunes the optimized processor
type CacheConfig struct {
	Enabled            bool  `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	MemoryCeilingMB    int64 `yaml:"memory_ceiling_mb" envconfig:"MEMORY_CEILING_MB" default:"512"`
	StreamThreshold    int   `yaml:"stream_threshold" envconfig:"STREAM_THRESHOLD" default:"10000"`
	StreamBatchSize    int   `yaml:"stream_batch_size" envconfig:"STREAM_BATCH_SIZE" default:"1000"`
	MaxCachedProcessor int   `yaml:"max_cached_processors" envconfig:"MAX_CACHED_PROCESSORS" default:"16"`
}

// EngineDefaults are applied to requests that leave a field unset
type EngineDefaults struct {
	FPS           int    `yaml:"fps" envconfig:"FPS" default:"30"`
	TopN          int    `yaml:"top_n" envconfig:"TOP_N" default:"10"`
	Interpolation string `yaml:"interpolation" envconfig:"INTERPOLATION" default:"linear"`
}

// EnvPrefix namespaces every environment variable, e.g. BARRACE_SERVER_PORT.
const EnvPrefix = "BARRACE"

// Load loads configuration from environment variables and an optional YAML file.
// Environment variables win over the file.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path ("" for none).
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs lets explicitly set environment variables override the file.
// envconfig has already filled defaults, so an env value only counts when the
// variable is present.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig

	pick := func(envVar string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + envVar)
		return !ok
	}

	if pick("SERVER_PORT") && fileConfig.Server.Port != 0 {
		merged.Server.Port = fileConfig.Server.Port
	}
	if pick("SERVER_READ_TIMEOUT") && fileConfig.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if pick("SERVER_WRITE_TIMEOUT") && fileConfig.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if pick("SERVER_REQUEST_TIMEOUT") && fileConfig.Server.RequestTimeout != 0 {
		merged.Server.RequestTimeout = fileConfig.Server.RequestTimeout
	}
	if pick("SERVER_ALLOWED_ORIGINS") && len(fileConfig.Server.AllowedOrigins) > 0 {
		merged.Server.AllowedOrigins = fileConfig.Server.AllowedOrigins
	}
	if pick("SERVER_MAX_BODY_BYTES") && fileConfig.Server.MaxBodyBytes != 0 {
		merged.Server.MaxBodyBytes = fileConfig.Server.MaxBodyBytes
	}
	if pick("LOGGING_LEVEL") && fileConfig.Logging.Level != "" {
		merged.Logging.Level = fileConfig.Logging.Level
	}
	if pick("LOGGING_OUTPUT") && fileConfig.Logging.Output != "" {
		merged.Logging.Output = fileConfig.Logging.Output
	}
	if pick("LOGGING_FILE_PATH") && fileConfig.Logging.FilePath != "" {
		merged.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if pick("CACHE_MEMORY_CEILING_MB") && fileConfig.Cache.MemoryCeilingMB != 0 {
		merged.Cache.MemoryCeilingMB = fileConfig.Cache.MemoryCeilingMB
	}
	if pick("CACHE_STREAM_THRESHOLD") && fileConfig.Cache.StreamThreshold != 0 {
		merged.Cache.StreamThreshold = fileConfig.Cache.StreamThreshold
	}
	if pick("ENGINE_FPS") && fileConfig.Engine.FPS != 0 {
		merged.Engine.FPS = fileConfig.Engine.FPS
	}
	if pick("ENGINE_TOP_N") && fileConfig.Engine.TopN != 0 {
		merged.Engine.TopN = fileConfig.Engine.TopN
	}
	if pick("ENGINE_INTERPOLATION") && fileConfig.Engine.Interpolation != "" {
		merged.Engine.Interpolation = fileConfig.Engine.Interpolation
	}

	return merged
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Engine.FPS < MinFPS || c.Engine.FPS > MaxFPS {
		return fmt.Errorf("engine fps must be between %d and %d, got %d", MinFPS, MaxFPS, c.Engine.FPS)
	}
	if c.Engine.TopN < MinTopN || c.Engine.TopN > MaxTopN {
		return fmt.Errorf("engine top_n must be between %d and %d, got %d", MinTopN, MaxTopN, c.Engine.TopN)
	}
	if _, err := interpolation.ParseMethod(c.Engine.Interpolation); err != nil {
		return fmt.Errorf("engine interpolation: %w", err)
	}
	if c.Cache.StreamBatchSize <= 0 {
		c.Cache.StreamBatchSize = DefaultStreamBatchSize
	}

	// JSON output is the only format the log pipeline ingests
	c.Logging.Format = "json"
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/barrace.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
			MaxBodyBytes:    32 << 20,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/barrace.log",
		},
		Cache: CacheConfig{
			Enabled:            true,
			MemoryCeilingMB:    DefaultMemoryCeilingMB,
			StreamThreshold:    DefaultStreamThreshold,
			StreamBatchSize:    DefaultStreamBatchSize,
			MaxCachedProcessor: 16,
		},
		Engine: EngineDefaults{
			FPS:           DefaultFPS,
			TopN:          DefaultTopN,
			Interpolation: "linear",
		},
	}
}
