package sink

import (
	"testing"
	"time"

	"logserver/domain"

	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	at := time.Date(2026, 10, 15, 8, 30, 1, 250000000, time.Local)
	evt := domain.Event{
		Timestamp:  at,
		Severity:   domain.SeverityWarning,
		ProcessID:  1200,
		ThreadID:   1201,
		ThreadName: "scheduler",
		Location:   domain.SourceLocation{File: "/src/scheduler/scheduler.go", Line: 88, Function: "Run"},
		Message:    "conflict detected",
	}

	require.Equal(t,
		"2026-10-15 08:30:01.250000 W  [1200/1201] scheduler scheduler.go:88 (Run) - conflict detected\n",
		FormatLine(evt))
}

func TestFormatLine_WithoutLocation(t *testing.T) {
	evt := domain.Event{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local),
		Severity:  domain.SeverityDebug,
		Message:   "tick",
	}
	require.Equal(t, "2026-01-02 03:04:05.000000 D  [0/0] - - tick\n", FormatLine(evt))
}
