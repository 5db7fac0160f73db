//go:build windows

package sink

import (
	"context"
	"log/slog"

	"logserver/contract"
	"logserver/domain"
	apperrors "logserver/errors"
)

var _ contract.Sink = (*SyslogSink)(nil)

// SyslogSink has no backend on Windows; Open always fails so the server
// leaves it out.
type SyslogSink struct {
	name string
}

func NewSyslogSink(name, _, _ string, _ *slog.Logger) *SyslogSink {
	return &SyslogSink{name: name}
}

func (s *SyslogSink) Name() string { return s.name }

func (s *SyslogSink) Open(_ context.Context) error { return apperrors.ErrSyslogUnavailable }

func (s *SyslogSink) Handle(_ context.Context, _ domain.Event) domain.Outcome {
	return domain.Dropped(apperrors.ErrSyslogUnavailable)
}

func (s *SyslogSink) Reopen() error { return nil }

func (s *SyslogSink) StopAcceptingPrimaryStore() {}

func (s *SyslogSink) Close(_ context.Context) error { return nil }
