package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"logserver/contract"
	"logserver/domain"
	apperrors "logserver/errors"

	"github.com/gookit/color"
)

var _ contract.Sink = (*FileSink)(nil)

var severityColors = map[domain.Severity]color.Color{
	domain.SeverityEmerg:   color.FgLightRed,
	domain.SeverityAlert:   color.FgLightRed,
	domain.SeverityCrit:    color.FgRed,
	domain.SeverityErr:     color.FgRed,
	domain.SeverityWarning: color.FgYellow,
	domain.SeverityNotice:  color.FgCyan,
	domain.SeverityInfo:    color.FgDefault,
	domain.SeverityDebug:   color.FgGray,
}

// FileSink writes one line per event to a file, or to standard output when
// built as a console sink.
//
// All methods except Close are expected to run on the ingestion goroutine, so
// the descriptor is not locked.
type FileSink struct {
	name     string
	path     string
	console  bool
	colorize bool
	log      *slog.Logger

	out           io.Writer
	file          *os.File
	opened        bool
	failureLogged bool
}

// NewFileSink builds a sink appending to path.
func NewFileSink(name, path string, log *slog.Logger) *FileSink {
	return &FileSink{name: name, path: path, log: log}
}

// NewConsoleSink builds a sink writing to out, usually os.Stdout.
func NewConsoleSink(name string, out io.Writer, colorize bool, log *slog.Logger) *FileSink {
	return &FileSink{name: name, console: true, out: out, colorize: colorize, log: log}
}

func (f *FileSink) Name() string { return f.name }

// Open acquires the descriptor. A file that cannot be opened at start makes
// the sink unavailable and the server leaves it out.
func (f *FileSink) Open(_ context.Context) error {
	if f.console {
		f.opened = true
		return nil
	}
	return f.openFile()
}

func (f *FileSink) openFile() error {
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		f.opened = false
		return fmt.Errorf("opening log file %s: %w", f.path, err)
	}
	f.file = file
	f.out = file
	f.opened = true
	return nil
}

func (f *FileSink) Handle(_ context.Context, e domain.Event) domain.Outcome {
	if !f.opened {
		return domain.Dropped(apperrors.ErrSinkDisabled)
	}
	line := FormatLine(e)
	if f.colorize {
		if c, ok := severityColors[e.Severity]; ok {
			line = c.Render(line)
		}
	}
	if _, err := io.WriteString(f.out, line); err != nil {
		if !f.failureLogged {
			f.failureLogged = true
			f.log.Error("Log sink write failed", "sink", f.name, "path", f.path, "error", err)
		}
		return domain.Failed(err)
	}
	f.failureLogged = false
	return domain.Delivered()
}

// Reopen closes the current descriptor and opens the configured path again,
// creating it when an external rotation moved it away. Until a later Reopen
// succeeds, a failed one leaves the sink dropping events.
func (f *FileSink) Reopen() error {
	if f.console {
		return nil
	}
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	if err := f.openFile(); err != nil {
		f.log.Error("Log file reopen failed, sink disabled until next reopen", "sink", f.name, "error", err)
		return err
	}
	f.failureLogged = false
	f.log.Debug("Log file reopened", "sink", f.name, "path", f.path)
	return nil
}

func (f *FileSink) StopAcceptingPrimaryStore() {}

func (f *FileSink) Close(_ context.Context) error {
	f.opened = false
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
