//go:build windows

package main

import (
	"fmt"
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

func cmdStart() {
	fmt.Fprintln(os.Stderr, "background mode needs a unix-like OS; use 'pulsed run' to stay in the foreground")
	os.Exit(1)
}

func cmdStop() {
	fmt.Fprintln(os.Stderr, "background mode needs a unix-like OS")
	os.Exit(1)
}

func cmdStatus() {
	fmt.Fprintln(os.Stderr, "background mode needs a unix-like OS")
	os.Exit(1)
}

// Without daemon mode there is never a tracked PID.
func processExists(pid int) bool { return false }
