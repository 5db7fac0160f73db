package domain

import (
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	t.Run("Short message untouched", func(t *testing.T) {
		require.Equal(t, "hello", Truncate("hello"))
	})

	t.Run("Exactly at the bound", func(t *testing.T) {
		msg := strings.Repeat("a", MaxMessageLength)
		require.Equal(t, msg, Truncate(msg))
	})

	t.Run("Oversized ASCII cut to the bound", func(t *testing.T) {
		msg := strings.Repeat("a", MaxMessageLength+500)
		got := Truncate(msg)
		require.Len(t, got, MaxMessageLength)
		require.Equal(t, msg[:MaxMessageLength], got)
	})

	t.Run("Multi-byte rune never split", func(t *testing.T) {
		msg := strings.Repeat("a", MaxMessageLength-1) + "é" + "tail"
		got := Truncate(msg)
		require.True(t, utf8.ValidString(got))
		require.Len(t, got, MaxMessageLength-1)
	})
}

func TestNewEvent(t *testing.T) {
	req := require.New(t)
	evt := NewEvent(SeverityErr, FacilityDatabase, strings.Repeat("z", 3000),
		WithApplication("backend"), WithThread("worker", 7))

	req.Equal(SeverityErr, evt.Severity)
	req.Equal(FacilityDatabase, evt.Mask)
	req.Equal(int64(os.Getpid()), evt.ProcessID)
	req.Equal("backend", evt.Application)
	req.Equal("worker", evt.ThreadName)
	req.Len(evt.Message, MaxMessageLength)
	req.False(evt.Timestamp.IsZero())
}

func TestParseSeverity(t *testing.T) {
	req := require.New(t)
	for _, tc := range []struct {
		in   string
		want Severity
	}{
		{"debug", SeverityDebug},
		{"INFO", SeverityInfo},
		{"error", SeverityErr},
		{"warn", SeverityWarning},
		{" emerg ", SeverityEmerg},
	} {
		got, err := ParseSeverity(tc.in)
		req.NoError(err)
		req.Equal(tc.want, got)
	}
	_, err := ParseSeverity("verbose")
	req.Error(err)
}

func TestParseMask(t *testing.T) {
	req := require.New(t)

	mask, err := ParseMask("general, database")
	req.NoError(err)
	req.Equal(FacilityGeneral|FacilityDatabase, mask)
	req.Equal("database,general", mask.String())

	mask, err = ParseMask("")
	req.NoError(err)
	req.Equal(FacilityAll, mask)

	mask, err = ParseMask("none")
	req.NoError(err)
	req.Equal(FacilityNone, mask)

	_, err = ParseMask("general,bogus")
	req.Error(err)
}

func TestFilter_Allows(t *testing.T) {
	req := require.New(t)
	filter := Filter{MaxSeverity: SeverityWarning, Mask: FacilityDatabase | FacilityGeneral}

	req.True(filter.Allows(Event{Severity: SeverityErr, Mask: FacilityDatabase}))
	req.False(filter.Allows(Event{Severity: SeverityInfo, Mask: FacilityDatabase}))
	req.False(filter.Allows(Event{Severity: SeverityErr, Mask: FacilityAudio}))
	// Events without a facility are treated as general
	req.True(filter.Allows(Event{Severity: SeverityWarning}))
	req.True(AcceptAll.Allows(Event{Severity: SeverityDebug, Mask: FacilityMedia}))
}
