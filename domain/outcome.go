package domain

// Status is the result class of one sink delivery attempt.
type Status int

const (
	StatusDelivered Status = iota
	StatusDropped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusDropped:
		return "dropped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is returned by every sink for every event it is handed.
// Reason is nil for deliveries.
type Outcome struct {
	Status Status
	Reason error
}

func Delivered() Outcome {
	return Outcome{Status: StatusDelivered}
}

func Dropped(reason error) Outcome {
	return Outcome{Status: StatusDropped, Reason: reason}
}

func Failed(reason error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}
