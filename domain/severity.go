package domain

import (
	"fmt"
	"strings"
)

// Severity is ordered like syslog priorities: lower is more severe.
type Severity int

const (
	SeverityEmerg Severity = iota
	SeverityAlert
	SeverityCrit
	SeverityErr
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
)

var severityNames = [...]string{"EMERG", "ALERT", "CRIT", "ERR", "WARNING", "NOTICE", "INFO", "DEBUG"}

// severityCodes are the one-letter markers used in file lines.
var severityCodes = [...]byte{'E', 'A', 'C', 'E', 'W', 'N', 'I', 'D'}

func (s Severity) Valid() bool {
	return s >= SeverityEmerg && s <= SeverityDebug
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
	return severityNames[s]
}

func (s Severity) Code() byte {
	if !s.Valid() {
		return '-'
	}
	return severityCodes[s]
}

// ParseSeverity accepts the names above, case-insensitively, plus the
// common aliases "error" and "warn".
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch upper {
	case "ERROR":
		return SeverityErr, nil
	case "WARN":
		return SeverityWarning, nil
	case "CRITICAL":
		return SeverityCrit, nil
	}
	for i, n := range severityNames {
		if n == upper {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}
