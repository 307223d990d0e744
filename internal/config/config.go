package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. TWLIVE_POLLING_INTERVAL_SECONDS.
const EnvPrefix = "TWLIVE"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StaticDir       string        `mapstructure:"static_dir"` // served under /static/ when set
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // redis or sqlite
	SQLitePath string `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type PollingConfig struct {
	IntervalSeconds int           `mapstructure:"interval_seconds"`
	IntervalHours   float64       `mapstructure:"interval_hours"` // wins over interval_seconds when > 0
	JitterSeconds   int           `mapstructure:"jitter_seconds"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"` // outgoing watch-page fetches
	Burst           int           `mapstructure:"burst"`
	UserAgent       string        `mapstructure:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type DashboardConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	IntervalSeconds int           `mapstructure:"interval_seconds"` // 0 disables auto-refresh
	PageSize        int           `mapstructure:"page_size"`
	Timezone        string        `mapstructure:"timezone"`
	TimeFormat      string        `mapstructure:"time_format"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	LogFile         string        `mapstructure:"log_file"`
}

// PollSeconds returns the poll base interval and jitter in seconds. interval_hours
// takes precedence, then interval_seconds, then 30s; the base is never below one
// second and the jitter never negative.
func (p PollingConfig) PollSeconds() (base, jitter int) {
	switch {
	case p.IntervalHours > 0:
		base = int(p.IntervalHours * 3600)
	case p.IntervalSeconds > 0:
		base = p.IntervalSeconds
	default:
		base = 30
	}
	if base < 1 {
		base = 1
	}
	jitter = p.JitterSeconds
	if jitter < 0 {
		jitter = 0
	}
	return base, jitter
}

// Location resolves the dashboard timezone, falling back to the local zone.
func (d DashboardConfig) Location() *time.Location {
	if d.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads configuration from configPath. An empty path yields defaults plus
// environment overrides.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

// Watch re-reads configPath whenever it changes on disk and hands every valid
// configuration to onChange. Invalid edits are logged and ignored.
func Watch(configPath string, log logrus.FieldLogger, onChange func(*Config)) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Ignoring invalid configuration change")
			return
		}
		log.WithField("file", e.Name).Info("Configuration reloaded")
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.debug_endpoints", false)

	// Storage defaults
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.sqlite_path", "tw-live.db")

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.key_prefix", "twlive:")

	// Polling defaults
	v.SetDefault("polling.interval_seconds", 30)
	v.SetDefault("polling.interval_hours", 0)
	v.SetDefault("polling.jitter_seconds", 10)
	v.SetDefault("polling.request_timeout", "15s")
	v.SetDefault("polling.rate_per_second", 2.0)
	v.SetDefault("polling.burst", 1)
	v.SetDefault("polling.user_agent", "Mozilla/5.0 (compatible; YTLiveMonitor/1.0)")
	v.SetDefault("polling.accept_language", "zh-TW,zh;q=0.9,en;q=0.8")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Dashboard defaults
	v.SetDefault("dashboard.base_url", "http://localhost:8000")
	v.SetDefault("dashboard.interval_seconds", 30)
	v.SetDefault("dashboard.page_size", 10)
	v.SetDefault("dashboard.timezone", "Asia/Taipei")
	v.SetDefault("dashboard.time_format", "2006/01/02 15:04:05")
	v.SetDefault("dashboard.request_timeout", "10s")
	v.SetDefault("dashboard.log_file", "ytdash.log")
}
