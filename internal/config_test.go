package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"logserver/domain"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Load("")

	req.NoError(err)
	req.Equal("unix", cfg.SocketNetwork)
	req.True(cfg.ConsoleEnabled)
	req.Equal("none", cfg.DatabaseDriver)
	req.Equal("logging", cfg.DatabaseTable)
	req.Equal(1000, cfg.QueueCapacity)
	req.Equal(5*time.Second, cfg.MinDisabledTime())
	req.Equal(3*time.Second, cfg.DrainTimeout)

	filter, err := cfg.Filter()
	req.NoError(err)
	req.Equal(domain.AcceptAll, filter)
}

func TestLoad_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("FILE_PATH", "/var/log/app.log")
	t.Setenv("SYSLOG_ENABLED", "true")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_PATH", "/tmp/logs.db")
	t.Setenv("MIN_DISABLED_MS", "250")
	t.Setenv("LOG_MASK", "general,database")
	t.Setenv("LOG_MAX_SEVERITY", "warning")

	cfg, err := Load("")

	req.NoError(err)
	req.Equal(SinkOptions{
		ConsoleEnabled: true,
		FilePath:       "/var/log/app.log",
		SyslogEnabled:  true,
		DatabaseTable:  "logging",
		MinDisabledMs:  250,
	}, cfg.SinkOptions())
	filter, err := cfg.Filter()
	req.NoError(err)
	req.Equal(domain.SeverityWarning, filter.MaxSeverity)
	req.Equal(domain.FacilityGeneral|domain.FacilityDatabase, filter.Mask)
}

func TestLoad_DotenvFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(path, []byte("QUEUE_CAPACITY=42\nAPPLICATION=recorder\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("QUEUE_CAPACITY")
		_ = os.Unsetenv("APPLICATION")
	})

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(42, cfg.QueueCapacity)
	req.Equal("recorder", cfg.Application)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"DATABASE_DRIVER": "postgres"},
		"database needs path":  {"DATABASE_DRIVER": "sqlite"},
		"zero queue":           {"QUEUE_CAPACITY": "0"},
		"unknown facility":     {"LOG_MASK": "general,bogus"},
		"unknown severity":     {"LOG_MAX_SEVERITY": "LOUD"},
		"unknown network":      {"SOCKET_NETWORK": "udp"},
		"bad syslog facility":  {"SYSLOG_FACILITY": "kern"},
		"negative disabled ms": {"MIN_DISABLED_MS": "-1"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingDotenvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)
}
