//go:build !windows

package main

import (
	"os"
	"syscall"
)

var reopenSignal os.Signal = syscall.SIGHUP

func controlSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGUSR1}
}

func isStopDatabaseSignal(sig os.Signal) bool {
	return sig == syscall.SIGUSR1
}
