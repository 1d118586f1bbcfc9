// Package config loads application configuration from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STATUSGARDEN_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Graphite      GraphiteConfig      `koanf:"graphite"`
	Jenkins       JenkinsConfig       `koanf:"jenkins"`
	Calendar      CalendarConfig      `koanf:"calendar"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// GraphiteConfig holds metrics backend settings.
type GraphiteConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"omitempty,url"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout"`
}

// JenkinsConfig holds build server settings.
type JenkinsConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"omitempty,url"`
	Username string        `koanf:"username"`
	APIToken string        `koanf:"api_token"`
	Timeout  time.Duration `koanf:"timeout"`
}

// CalendarConfig holds on-call calendar feed settings.
type CalendarConfig struct {
	FeedURL string        `koanf:"feed_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// NotificationsConfig holds alert delivery settings.
type NotificationsConfig struct {
	Email EmailConfig `koanf:"email"`
	Chat  ChatConfig  `koanf:"chat"`
	SMS   SMSConfig   `koanf:"sms"`
	Phone PhoneConfig `koanf:"phone"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
}

// ChatConfig holds chat webhook settings.
type ChatConfig struct {
	Enabled    bool    `koanf:"enabled"`
	WebhookURL string  `koanf:"webhook_url"`
	Username   string  `koanf:"username"`
	IconURL    string  `koanf:"icon_url"`
	RateLimit  float64 `koanf:"rate_limit"`
}

// SMSConfig holds SMS gateway settings.
type SMSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	APIKey     string `koanf:"api_key"`
	FromNumber string `koanf:"from_number"`
}

// PhoneConfig holds telephony provider settings.
type PhoneConfig struct {
	Enabled    bool   `koanf:"enabled"`
	APIKey     string `koanf:"api_key"`
	FromNumber string `koanf:"from_number"`
}

// SchedulerConfig holds check scheduling settings.
type SchedulerConfig struct {
	PollInterval      time.Duration `koanf:"poll_interval"`
	NumWorkers        int           `koanf:"num_workers" validate:"gte=0"`
	CheckTimeout      time.Duration `koanf:"check_timeout"`
	ShiftSyncInterval time.Duration `koanf:"shift_sync_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

// Load reads configuration from the given YAML file, overlays
// environment variables prefixed with STATUSGARDEN_, applies defaults,
// and validates the result. Path may be empty to run on env vars alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// STATUSGARDEN_DATABASE_URL -> database.url. Section names have no
	// underscores, so only the first one splits.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(key, "_", ".", 1)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		Graphite: GraphiteConfig{
			Timeout: 30 * time.Second,
		},
		Jenkins: JenkinsConfig{
			Timeout: 30 * time.Second,
		},
		Calendar: CalendarConfig{
			Timeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			PollInterval:      10 * time.Second,
			NumWorkers:        5,
			CheckTimeout:      2 * time.Minute,
			ShiftSyncInterval: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
