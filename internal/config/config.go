package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"homehelper/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvAPIBaseURL overrides api.base_url when set.
const EnvAPIBaseURL = "HOMEHELPER_API_BASE_URL"

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Session    SessionConfig    `yaml:"session"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Notify     NotifyConfig     `yaml:"notify"`
	Events     EventsConfig     `yaml:"events"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	BaseURL         string             `yaml:"base_url"`
	TimeoutSeconds  int                `yaml:"timeout_seconds"`
	CacheTTLSeconds int                `yaml:"cache_ttl_seconds"`
	RateLimit       APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c APIConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type TrackerConfig struct {
	Role                models.Role `yaml:"role"`
	PollIntervalSeconds int         `yaml:"poll_interval_seconds"`
	TickMillis          int         `yaml:"tick_millis"`
	ToastMillis         int         `yaml:"toast_millis"`
	Timezone            string      `yaml:"timezone"`
}

func (c TrackerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c TrackerConfig) Tick() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

func (c TrackerConfig) ToastDuration() time.Duration {
	return time.Duration(c.ToastMillis) * time.Millisecond
}

// Location resolves the timezone used for calendar-day filters.
func (c TrackerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type SessionConfig struct {
	// Store is one of memory, redis, sqlite.
	Store      string `yaml:"store"`
	Key        string `yaml:"key"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Token      string `yaml:"token"`
	UserID     string `yaml:"user_id"`
	UserName   string `yaml:"user_name"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if base := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); base != "" {
		config.API.BaseURL = base
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api base url is required")
	}

	switch c.Tracker.Role {
	case models.RoleCustomer, models.RoleProvider:
	default:
		return fmt.Errorf("unknown tracker role %q", c.Tracker.Role)
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address is required for session.store=redis")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required for session.store=sqlite")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}

	if c.Notify.Telegram.Enabled && c.Notify.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram notifications are enabled")
	}

	if c.Events.Kafka.Enabled && (len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "") {
		return errors.New("kafka brokers and topic are required when kafka is enabled")
	}

	return nil
}

func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = models.DefaultRequestTimeoutSeconds
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 1
	}

	if c.Tracker.Role == "" {
		c.Tracker.Role = models.RoleProvider
	}
	if c.Tracker.PollIntervalSeconds == 0 {
		c.Tracker.PollIntervalSeconds = models.DefaultPollIntervalSeconds
	}
	if c.Tracker.TickMillis == 0 {
		c.Tracker.TickMillis = models.DefaultTickMillis
	}
	if c.Tracker.ToastMillis == 0 {
		c.Tracker.ToastMillis = models.DefaultToastMillis
	}

	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.Key == "" {
		c.Session.Key = "default"
	}
	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = models.DefaultSessionTTL
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Events.Kafka.Enabled && c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "homehelper.bookings"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
