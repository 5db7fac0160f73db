package domain

import (
	"os"
	"time"
	"unicode/utf8"
)

// MaxMessageLength bounds the message text carried by one frame.
// It is the frame budget minus a fixed reserve for the header fields.
const MaxMessageLength = 2048 - 120

// MaxFieldLength bounds every other text field of an event on the wire.
const MaxFieldLength = 512

var processStart = time.Now()

// SourceLocation identifies the call site that emitted an event.
type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// Event is one structured log record.
// It is passed by value everywhere so a sink can never mutate what another sink sees.
type Event struct {
	Timestamp   time.Time
	Monotonic   time.Duration // producer uptime at emission
	Severity    Severity
	Mask        Facility
	Location    SourceLocation
	Application string
	Hostname    string
	ThreadName  string
	ThreadID    int64
	ProcessID   int64
	Message     string
}

type EventOption func(*Event)

func WithLocation(file string, line int, function string) EventOption {
	return func(e *Event) {
		e.Location = SourceLocation{File: file, Line: line, Function: function}
	}
}

func WithApplication(application string) EventOption {
	return func(e *Event) { e.Application = application }
}

func WithThread(name string, id int64) EventOption {
	return func(e *Event) {
		e.ThreadName = name
		e.ThreadID = id
	}
}

func WithTimestamp(at time.Time) EventOption {
	return func(e *Event) { e.Timestamp = at }
}

// NewEvent stamps a record with the current wall clock, the producer uptime,
// the process identity and the truncated message.
func NewEvent(severity Severity, mask Facility, message string, opts ...EventOption) Event {
	hostname, _ := os.Hostname()
	e := Event{
		Timestamp: time.Now(),
		Monotonic: time.Since(processStart),
		Severity:  severity,
		Mask:      mask,
		Hostname:  hostname,
		ProcessID: int64(os.Getpid()),
		Message:   Truncate(message),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Truncate cuts msg to MaxMessageLength bytes, backing off to the previous
// rune boundary when the cut would split a multi-byte character.
func Truncate(msg string) string {
	return TruncateTo(msg, MaxMessageLength)
}

// TruncateTo cuts s to at most limit bytes on a rune boundary.
func TruncateTo(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
