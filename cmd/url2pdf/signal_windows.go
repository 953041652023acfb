//go:build windows

package main

import "os"

// shutdownSignals trigger a graceful drain; Windows has no SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
