package main

import (
	"os"
	"syscall"
)

var reopenSignal os.Signal = syscall.SIGHUP

// No user signal exists here; database logging stops only at shutdown.
func controlSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP}
}

func isStopDatabaseSignal(os.Signal) bool { return false }
