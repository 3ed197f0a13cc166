//go:build !windows

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/reservly/pulsed/internal/config"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func cmdStart() {
	cfg := loadQuiet()

	// Check if already running
	if pid, err := readPidFile(cfg.PidFile); err == nil {
		if processExists(pid) {
			fmt.Printf("pulsed is already running (PID %d)\n", pid)
			os.Exit(1)
		}
		// Stale PID file
		os.Remove(cfg.PidFile)
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find executable: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", cfg.LogFile, err)
		os.Exit(1)
	}

	child := &exec.Cmd{
		Path:   exe,
		Args:   []string{filepath.Base(exe), "run", "-config", cfg.ConfigPath},
		Stdout: logFile,
		Stderr: logFile,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid: true, // detach from terminal
		},
	}

	if err := child.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	pid := child.Process.Pid
	if err := writePidFile(cfg.PidFile, pid); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write PID file: %v\n", err)
	}

	child.Process.Release()
	logFile.Close()

	fmt.Printf("pulsed started (PID %d)\n", pid)
	fmt.Printf("  Listen : http://%s\n", cfg.Listen)
	fmt.Printf("  Config : %s\n", cfg.ConfigPath)
	fmt.Printf("  PID    : %s\n", cfg.PidFile)
	fmt.Printf("  Log    : %s\n", cfg.LogFile)
}

func cmdStop() {
	cfg := loadQuiet()

	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsed is not running (no PID file: %s)\n", cfg.PidFile)
		os.Exit(1)
	}

	if !processExists(pid) {
		fmt.Printf("pulsed is not running (stale PID %d)\n", pid)
		os.Remove(cfg.PidFile)
		os.Exit(1)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find process %d: %v\n", pid, err)
		os.Exit(1)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop PID %d: %v\n", pid, err)
		os.Exit(1)
	}

	// Wait for the process to exit (up to 10 seconds)
	for i := 0; i < 100; i++ {
		time.Sleep(100 * time.Millisecond)
		if !processExists(pid) {
			os.Remove(cfg.PidFile)
			fmt.Printf("pulsed stopped (PID %d)\n", pid)
			return
		}
	}

	fmt.Printf("pulsed stop signal sent (PID %d), waiting for exit...\n", pid)
	os.Remove(cfg.PidFile)
}

func cmdStatus() {
	cfg := loadQuiet()

	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		fmt.Println("pulsed is stopped")
		os.Exit(1)
	}

	if processExists(pid) {
		fmt.Printf("pulsed is running (PID %d)\n", pid)
		fmt.Printf("  Listen : http://%s\n", cfg.Listen)
		fmt.Printf("  Config : %s\n", cfg.ConfigPath)
		fmt.Printf("  PID    : %s\n", cfg.PidFile)
		fmt.Printf("  Log    : %s\n", cfg.LogFile)
	} else {
		fmt.Printf("pulsed is stopped (stale PID file, was PID %d)\n", pid)
		os.Remove(cfg.PidFile)
		os.Exit(1)
	}
}

func loadQuiet() *config.Config {
	return config.Load(func(string, ...interface{}) {})
}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without actually sending a signal
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
