// Package config loads service configuration from an optional TOML file,
// a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Shivanand-hulikatti/eventease/internal/database"
	"github.com/Shivanand-hulikatti/eventease/internal/notify"
	"github.com/Shivanand-hulikatti/eventease/internal/scheduler"
	"github.com/Shivanand-hulikatti/eventease/internal/service"
)

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Address        string        `mapstructure:"address"`
	Port           string        `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return c.Address + ":" + c.Port
}

// LoggerConfig configures the default slog logger.
type LoggerConfig struct {
	Level     int  `mapstructure:"level"`
	AddSource bool `mapstructure:"add_source"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// NotifyConfig selects and configures the notification backend.
type NotifyConfig struct {
	Driver            string        `mapstructure:"driver"` // log or amqp
	Timeout           time.Duration `mapstructure:"timeout"`
	notify.AMQPConfig `mapstructure:",squash"`
}

// WorkflowConfig tunes the waitlist workflow.
type WorkflowConfig struct {
	InvitationTTL time.Duration `mapstructure:"invitation_ttl"` // draw invitations of events without a deadline
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres or memory
}

// Config represents the global configuration for the service.
type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	DB        database.Config  `mapstructure:"db"`
	Logger    LoggerConfig     `mapstructure:"logger"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Scheduler scheduler.Config `mapstructure:"scheduler"`
	Notify    NotifyConfig     `mapstructure:"notify"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Workflow  WorkflowConfig   `mapstructure:"workflow"`
}

// Load reads the configuration. Environment variables take precedence over
// the config file. A missing config file or .env file is not an error.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))
	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/eventease")
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Notify.Driver {
	case "log":
	case "amqp":
		if c.Notify.URL == "" {
			return fmt.Errorf("notify.amqp_url is required for the amqp notify driver")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}
	if c.Workflow.InvitationTTL <= 0 {
		return fmt.Errorf("workflow.invitation_ttl must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	db := database.DefaultConfig()
	sc := scheduler.DefaultConfig()

	v.SetDefault("http.address", "")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", time.Duration(0)) // SSE streams stay open
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("db.dsn", db.DSN)
	v.SetDefault("db.automigrate", db.Automigrate)
	v.SetDefault("db.max_conns", db.MaxConns)
	v.SetDefault("db.min_conns", db.MinConns)
	v.SetDefault("db.max_conn_lifetime", db.MaxConnLifetime)
	v.SetDefault("db.max_conn_idle_time", db.MaxConnIdleTime)
	v.SetDefault("db.connect_attempts", db.ConnectAttempts)

	v.SetDefault("logger.level", 0)
	v.SetDefault("logger.add_source", false)

	v.SetDefault("scheduler.enabled", sc.Enabled)
	v.SetDefault("scheduler.worker_interval", sc.WorkerInterval)
	v.SetDefault("scheduler.sorry_lead", sc.SorryLead)

	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.exchange", "notifications")

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("workflow.invitation_ttl", service.DefaultInvitationTTL)
}

// bindEnvVars binds flat environment variable names to config keys, so both
// DB__DSN and DB_DSN work.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"http.address":              "HTTP_ADDRESS",
		"http.port":                 "HTTP_PORT",
		"http.allowed_origins":      "HTTP_ALLOWED_ORIGINS",
		"db.dsn":                    "DB_DSN",
		"db.automigrate":            "DB_AUTOMIGRATE",
		"db.max_conns":              "DB_MAX_CONNS",
		"logger.level":              "LOG_LEVEL",
		"logger.add_source":         "LOG_ADD_SOURCE",
		"auth.jwt_secret":           "AUTH_JWT_SECRET",
		"scheduler.enabled":         "SCHEDULER_ENABLED",
		"scheduler.worker_interval": "SCHEDULER_WORKER_INTERVAL",
		"scheduler.sorry_lead":      "SCHEDULER_SORRY_LEAD",
		"notify.driver":             "NOTIFY_DRIVER",
		"notify.amqp_url":           "NOTIFY_AMQP_URL",
		"notify.exchange":           "NOTIFY_EXCHANGE",
		"notify.timeout":            "NOTIFY_TIMEOUT",
		"storage.driver":            "STORAGE_DRIVER",
		"workflow.invitation_ttl":   "WORKFLOW_INVITATION_TTL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}
