package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Facility is a bitset naming the subsystems an event belongs to.
type Facility uint64

const (
	FacilityGeneral Facility = 1 << iota
	FacilityRecord
	FacilityPlayback
	FacilityChannel
	FacilityOSD
	FacilityFile
	FacilitySchedule
	FacilityNetwork
	FacilityCommFlag
	FacilityAudio
	FacilityJobQueue
	FacilityDatabase
	FacilityUPnP
	FacilitySocket
	FacilitySystem
	FacilityMedia

	FacilityNone Facility = 0
	FacilityAll  Facility = ^Facility(0)
)

var facilityNames = map[string]Facility{
	"general":  FacilityGeneral,
	"record":   FacilityRecord,
	"playback": FacilityPlayback,
	"channel":  FacilityChannel,
	"osd":      FacilityOSD,
	"file":     FacilityFile,
	"schedule": FacilitySchedule,
	"network":  FacilityNetwork,
	"commflag": FacilityCommFlag,
	"audio":    FacilityAudio,
	"jobqueue": FacilityJobQueue,
	"database": FacilityDatabase,
	"upnp":     FacilityUPnP,
	"socket":   FacilitySocket,
	"system":   FacilitySystem,
	"media":    FacilityMedia,
}

// ParseMask reads a comma separated list of facility names.
// "all" and "none" are accepted; an empty string means all.
func ParseMask(spec string) (Facility, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return FacilityAll, nil
	}
	var mask Facility
	for _, part := range strings.Split(spec, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case "":
			continue
		case "all":
			mask = FacilityAll
			continue
		case "none":
			continue
		}
		bit, ok := facilityNames[name]
		if !ok {
			return FacilityNone, fmt.Errorf("unknown facility %q", part)
		}
		mask |= bit
	}
	return mask, nil
}

func (f Facility) String() string {
	switch f {
	case FacilityNone:
		return "none"
	case FacilityAll:
		return "all"
	}
	var names []string
	for name, bit := range facilityNames {
		if f&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Filter is applied by the server before any sink formats an event.
type Filter struct {
	MaxSeverity Severity
	Mask        Facility
}

// AcceptAll lets every event through.
var AcceptAll = Filter{MaxSeverity: SeverityDebug, Mask: FacilityAll}

// Allows reports whether e is severe enough and belongs to a selected
// facility. Events without any facility bit are treated as general.
func (f Filter) Allows(e Event) bool {
	if e.Severity > f.MaxSeverity {
		return false
	}
	mask := e.Mask
	if mask == FacilityNone {
		mask = FacilityGeneral
	}
	return mask&f.Mask != 0
}
