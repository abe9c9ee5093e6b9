package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pricewatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Notification NotificationConfig `mapstructure:"notification"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Shutdown     ShutdownConfig     `mapstructure:"shutdown"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MonitoringConfig governs evaluation cadence and debouncing.
// 周期与去抖都按秒与周期数配置,沿用桌面端的键名。
type MonitoringConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	DebounceCycles  int `mapstructure:"debounce_cycles"`
}

// Interval returns the evaluation cadence as a duration.
func (m MonitoringConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// DebounceWindow returns the minimum wall-clock gap between repeated
// triggers of one alert.
func (m MonitoringConfig) DebounceWindow() time.Duration {
	return time.Duration(m.DebounceCycles) * m.Interval()
}

// NotificationConfig governs the queue, dispatcher, and history store.
type NotificationConfig struct {
	QueueCapacity    int            `mapstructure:"queue_capacity"`
	Workers          int            `mapstructure:"workers"`
	DequeueTimeout   time.Duration  `mapstructure:"dequeue_timeout"`
	MaxPerUserPerDay int            `mapstructure:"max_per_user_per_day"`
	Retry            RetryConfig    `mapstructure:"retry"`
	History          HistoryConfig  `mapstructure:"history"`
	Channels         ChannelsConfig `mapstructure:"channels"`
}

// RetryConfig shapes per-channel delivery retries.
type RetryConfig struct {
	MaxAttempts int   `mapstructure:"max_attempts"`
	BaseMS      int64 `mapstructure:"base_ms"`
	Factor      int64 `mapstructure:"factor"`
	CapMS       int64 `mapstructure:"cap_ms"`
}

// Base returns the initial backoff as a duration.
func (r RetryConfig) Base() time.Duration {
	return time.Duration(r.BaseMS) * time.Millisecond
}

// Cap returns the backoff ceiling as a duration.
func (r RetryConfig) Cap() time.Duration {
	return time.Duration(r.CapMS) * time.Millisecond
}

// HistoryConfig bounds the notification archive.
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// ChannelsConfig toggles the delivery channels.
type ChannelsConfig struct {
	Email ChannelConfig `mapstructure:"email"`
	Push  ChannelConfig `mapstructure:"push"`
	InApp ChannelConfig `mapstructure:"in_app"`
}

// ChannelConfig 描述单个投递通道。in_app 不经网关,GatewayURL 留空。
type ChannelConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	GatewayURL string        `mapstructure:"gateway_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the Prometheus listener. Empty addr disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// ShutdownConfig bounds the drain phase on exit.
type ShutdownConfig struct {
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("monitoring.interval_seconds", 300)
	v.SetDefault("monitoring.debounce_cycles", 4)

	v.SetDefault("notification.queue_capacity", 10000)
	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.dequeue_timeout", "500ms")
	v.SetDefault("notification.max_per_user_per_day", 50)
	v.SetDefault("notification.retry.max_attempts", 3)
	v.SetDefault("notification.retry.base_ms", 1000)
	v.SetDefault("notification.retry.factor", 2)
	v.SetDefault("notification.retry.cap_ms", 30000)
	v.SetDefault("notification.history.max_entries", 100000)
	v.SetDefault("notification.channels.email.enabled", false)
	v.SetDefault("notification.channels.email.timeout", "10s")
	v.SetDefault("notification.channels.push.enabled", false)
	v.SetDefault("notification.channels.push.timeout", "10s")
	v.SetDefault("notification.channels.in_app.enabled", true)

	v.SetDefault("metrics.listen_addr", "")

	v.SetDefault("shutdown.drain_timeout", "30s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitoring.IntervalSeconds <= 0 {
		return fmt.Errorf("monitoring.interval_seconds must be greater than zero")
	}
	if c.Monitoring.DebounceCycles < 0 {
		return fmt.Errorf("monitoring.debounce_cycles cannot be negative")
	}
	if c.Notification.QueueCapacity <= 0 {
		return fmt.Errorf("notification.queue_capacity must be greater than zero")
	}
	if c.Notification.Workers <= 0 {
		return fmt.Errorf("notification.workers must be greater than zero")
	}
	if c.Notification.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("notification.retry.max_attempts must be greater than zero")
	}
	if c.Notification.History.MaxEntries <= 0 {
		return fmt.Errorf("notification.history.max_entries must be greater than zero")
	}
	if c.Notification.MaxPerUserPerDay <= 0 {
		return fmt.Errorf("notification.max_per_user_per_day must be greater than zero")
	}
	channels := c.Notification.Channels
	if !channels.Email.Enabled && !channels.Push.Enabled && !channels.InApp.Enabled {
		return fmt.Errorf("notification.channels 至少要启用一个通道")
	}
	if channels.Email.Enabled && channels.Email.GatewayURL == "" {
		return fmt.Errorf("notification.channels.email.gateway_url 必须配置")
	}
	if channels.Push.Enabled && channels.Push.GatewayURL == "" {
		return fmt.Errorf("notification.channels.push.gateway_url 必须配置")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
