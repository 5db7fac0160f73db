package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrSinkPanic   = fmt.Errorf("sink panic")

	ErrTransportUnavailable = fmt.Errorf("transport unavailable")
	ErrNoSinks              = fmt.Errorf("no sinks could be constructed")
	ErrServerStopped        = fmt.Errorf("server already stopped")
	ErrServerNotRunning     = fmt.Errorf("server not running")

	ErrQueueFull    = fmt.Errorf("write queue full")
	ErrQueueAborted = fmt.Errorf("write queue aborted")
	ErrSinkDisabled = fmt.Errorf("sink temporarily disabled")
	ErrSinkClosed   = fmt.Errorf("sink closed")
	ErrDrainTimeout = fmt.Errorf("drain deadline exceeded")

	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrFrameTooLarge  = fmt.Errorf("frame too large")

	ErrSyslogUnavailable = fmt.Errorf("syslog unavailable")
	ErrTableMissing      = fmt.Errorf("logging table missing")
	ErrInvalidTable      = fmt.Errorf("invalid table name")
)
