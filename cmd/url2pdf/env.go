package main

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer

	// Listen opens the HTTP listener.
	Listen func(network, address string) (net.Listener, error)

	// Signals returns a context canceled on SIGINT/SIGTERM.
	Signals func(parent context.Context) (context.Context, context.CancelFunc)

	// Ready, if set, is called with the bound address once serving.
	Ready func(addr net.Addr)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Listen:  net.Listen,
		Signals: notifyContext,
	}
}

// notifyContext returns a context canceled on the first shutdown signal.
// Call stop() to release resources.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
