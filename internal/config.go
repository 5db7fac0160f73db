package internal

import (
	"fmt"
	"time"

	"logserver/domain"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	LogLevel    string `env:"LOG_LEVEL,default=INFO" validate:"required"`
	Application string `env:"APPLICATION,default=logserver" validate:"required"`

	SocketNetwork      string `env:"SOCKET_NETWORK,default=unix" validate:"oneof=unix tcp"`
	SocketAddress      string `env:"SOCKET_ADDRESS,default=/tmp/logserver.sock" validate:"required"`
	SubscriptionBuffer int    `env:"SUBSCRIPTION_BUFFER,default=256" validate:"gt=0"`

	ConsoleEnabled bool   `env:"CONSOLE_ENABLED,default=true"`
	ConsoleColor   bool   `env:"CONSOLE_COLOR,default=false"`
	FilePath       string `env:"FILE_PATH"`
	SyslogEnabled  bool   `env:"SYSLOG_ENABLED,default=false"`
	SyslogFacility string `env:"SYSLOG_FACILITY,default=local7" validate:"oneof=user daemon local0 local1 local2 local3 local4 local5 local6 local7"`

	DatabaseDriver      string        `env:"DATABASE_DRIVER,default=none" validate:"oneof=sqlite badger none"`
	DatabasePath        string        `env:"DATABASE_PATH" validate:"required_unless=DatabaseDriver none"`
	DatabaseTable       string        `env:"DATABASE_TABLE,default=logging" validate:"required"`
	DatabaseCreateTable bool          `env:"DATABASE_CREATE_TABLE,default=true"`
	MinDisabledMs       int           `env:"MIN_DISABLED_MS,default=5000" validate:"gt=0"`
	QueueCapacity       int           `env:"QUEUE_CAPACITY,default=1000" validate:"gt=0"`
	WriteTimeout        time.Duration `env:"WRITE_TIMEOUT,default=2s" validate:"gt=0"`
	DrainTimeout        time.Duration `env:"DRAIN_TIMEOUT,default=3s" validate:"gt=0"`
	ErrorReportInterval time.Duration `env:"ERROR_REPORT_INTERVAL,default=0s" validate:"gte=0"`

	LogMask        string `env:"LOG_MASK,default=all"`
	LogMaxSeverity string `env:"LOG_MAX_SEVERITY,default=DEBUG"`

	ReportInterval  time.Duration `env:"REPORT_INTERVAL,default=1m" validate:"gte=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	MetricsAddress  string        `env:"METRICS_ADDRESS"`
}

// SinkOptions is the part of the configuration the sinks are built from.
type SinkOptions struct {
	ConsoleEnabled bool
	FilePath       string
	SyslogEnabled  bool
	DatabaseTable  string
	MinDisabledMs  int
}

// Load reads the configuration from the environment. A non-empty envFile is
// loaded first; variables already set in the environment win.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Filter(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) SinkOptions() SinkOptions {
	return SinkOptions{
		ConsoleEnabled: c.ConsoleEnabled,
		FilePath:       c.FilePath,
		SyslogEnabled:  c.SyslogEnabled,
		DatabaseTable:  c.DatabaseTable,
		MinDisabledMs:  c.MinDisabledMs,
	}
}

// Filter builds the severity/facility filter applied before fan-out.
func (c Config) Filter() (domain.Filter, error) {
	severity, err := domain.ParseSeverity(c.LogMaxSeverity)
	if err != nil {
		return domain.Filter{}, err
	}
	mask, err := domain.ParseMask(c.LogMask)
	if err != nil {
		return domain.Filter{}, err
	}
	return domain.Filter{MaxSeverity: severity, Mask: mask}, nil
}

func (c Config) MinDisabledTime() time.Duration {
	return time.Duration(c.MinDisabledMs) * time.Millisecond
}
