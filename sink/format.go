package sink

import (
	"fmt"
	"path/filepath"
	"strings"

	"logserver/domain"
)

const lineTimeLayout = "2006-01-02 15:04:05.000000"

// FormatLine renders e the way file and console sinks print it:
//
//	2006-01-02 15:04:05.000000 I [pid/tid] thread file:line (function) - message
func FormatLine(e domain.Event) string {
	var b strings.Builder
	b.Grow(len(e.Message) + 96)
	b.WriteString(e.Timestamp.Format(lineTimeLayout))
	b.WriteByte(' ')
	b.WriteByte(e.Severity.Code())
	fmt.Fprintf(&b, "  [%d/%d] ", e.ProcessID, e.ThreadID)
	thread := e.ThreadName
	if thread == "" {
		thread = "-"
	}
	b.WriteString(thread)
	if e.Location.File != "" {
		fmt.Fprintf(&b, " %s:%d", filepath.Base(e.Location.File), e.Location.Line)
	}
	if e.Location.Function != "" {
		fmt.Fprintf(&b, " (%s)", e.Location.Function)
	}
	b.WriteString(" - ")
	b.WriteString(e.Message)
	b.WriteByte('\n')
	return b.String()
}

// formatSyslog drops the timestamp and pid, which syslog adds itself.
func formatSyslog(e domain.Event) string {
	var b strings.Builder
	b.WriteByte(e.Severity.Code())
	b.WriteByte(' ')
	if e.ThreadName != "" {
		b.WriteString(e.ThreadName)
		b.WriteByte(' ')
	}
	if e.Location.File != "" {
		fmt.Fprintf(&b, "%s:%d ", filepath.Base(e.Location.File), e.Location.Line)
	}
	if e.Location.Function != "" {
		fmt.Fprintf(&b, "(%s) ", e.Location.Function)
	}
	b.WriteString(e.Message)
	return b.String()
}
