//go:build !windows

package sink

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"strings"

	"logserver/contract"
	"logserver/domain"
	apperrors "logserver/errors"
)

var _ contract.Sink = (*SyslogSink)(nil)

var syslogFacilities = map[string]syslog.Priority{
	"user":   syslog.LOG_USER,
	"daemon": syslog.LOG_DAEMON,
	"local0": syslog.LOG_LOCAL0,
	"local1": syslog.LOG_LOCAL1,
	"local2": syslog.LOG_LOCAL2,
	"local3": syslog.LOG_LOCAL3,
	"local4": syslog.LOG_LOCAL4,
	"local5": syslog.LOG_LOCAL5,
	"local6": syslog.LOG_LOCAL6,
	"local7": syslog.LOG_LOCAL7,
}

// SyslogSink forwards events to the local system log. The channel is already
// buffered by the OS, so nothing is queued or retried here.
type SyslogSink struct {
	name          string
	application   string
	facility      string
	log           *slog.Logger
	writer        *syslog.Writer
	failureLogged bool
}

func NewSyslogSink(name, application, facility string, log *slog.Logger) *SyslogSink {
	return &SyslogSink{name: name, application: application, facility: facility, log: log}
}

func (s *SyslogSink) Name() string { return s.name }

// Open connects to the local syslog daemon once, tagged with the application.
func (s *SyslogSink) Open(_ context.Context) error {
	priority, ok := syslogFacilities[strings.ToLower(s.facility)]
	if !ok {
		return fmt.Errorf("%w: unknown facility %q", apperrors.ErrSyslogUnavailable, s.facility)
	}
	w, err := syslog.New(priority|syslog.LOG_INFO, s.application)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSyslogUnavailable, err)
	}
	s.writer = w
	return nil
}

func (s *SyslogSink) Handle(_ context.Context, e domain.Event) domain.Outcome {
	if s.writer == nil {
		return domain.Dropped(apperrors.ErrSinkClosed)
	}
	if err := s.send(e.Severity, formatSyslog(e)); err != nil {
		if !s.failureLogged {
			s.failureLogged = true
			s.log.Error("Syslog send failed", "sink", s.name, "error", err)
		}
		return domain.Failed(err)
	}
	s.failureLogged = false
	return domain.Delivered()
}

func (s *SyslogSink) send(severity domain.Severity, msg string) error {
	switch severity {
	case domain.SeverityEmerg:
		return s.writer.Emerg(msg)
	case domain.SeverityAlert:
		return s.writer.Alert(msg)
	case domain.SeverityCrit:
		return s.writer.Crit(msg)
	case domain.SeverityErr:
		return s.writer.Err(msg)
	case domain.SeverityWarning:
		return s.writer.Warning(msg)
	case domain.SeverityNotice:
		return s.writer.Notice(msg)
	case domain.SeverityInfo:
		return s.writer.Info(msg)
	default:
		return s.writer.Debug(msg)
	}
}

// Reopen is a no-op: the syslog channel has nothing to rotate.
func (s *SyslogSink) Reopen() error { return nil }

func (s *SyslogSink) StopAcceptingPrimaryStore() {}

func (s *SyslogSink) Close(_ context.Context) error {
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}
