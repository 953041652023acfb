//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals trigger a graceful drain. Orchestrators send SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
