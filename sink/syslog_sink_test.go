//go:build !windows

package sink

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"logserver/domain"
	apperrors "logserver/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestSyslogSink_UnknownFacility(t *testing.T) {
	req := require.New(t)
	// Given a syslog sink configured with a facility syslog does not know
	s := NewSyslogSink("syslog", "logserver", "kernel-ish", logs.GetLoggerFromLevel(slog.LevelDebug))

	// When it is opened
	err := s.Open(context.Background())

	// Then construction fails and the sink can be left out
	req.True(errors.Is(err, apperrors.ErrSyslogUnavailable))
	req.NoError(s.Close(context.Background()))
}

func TestSyslogSink_HandleWithoutConnectionDrops(t *testing.T) {
	req := require.New(t)
	// Given a syslog sink that was never opened
	s := NewSyslogSink("syslog", "logserver", "user", logs.GetLoggerFromLevel(slog.LevelDebug))

	// When an event is handled
	outcome := s.Handle(context.Background(), eventWithMessage("hello"))

	// Then it is dropped instead of blocking
	req.Equal(domain.StatusDropped, outcome.Status)
	req.NoError(s.Reopen())
}
