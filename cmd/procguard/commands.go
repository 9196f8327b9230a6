package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/procguard/internal/config"
	"github.com/loykin/procguard/internal/daemon"
	"github.com/loykin/procguard/internal/lock"
)

// errNotRunning reports that no live daemon owns the lock file.
var errNotRunning = errors.New("procguard daemon is not running")

// command implements the subcommand logic independent of cobra wiring.
type command struct{}

// Start runs the monitoring daemon, optionally forking into the background
// first.
func (command) Start(flags StartFlags) error {
	settings, err := config.LoadSettings(flags.ConfigPath)
	if err != nil {
		return err
	}

	if flags.Daemonize {
		return daemonize(flags.LogFile)
	}

	log, closer := settings.Log.NewSlogger()
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	slog.SetDefault(log)

	d := daemon.New(settings)
	return d.Run(context.Background())
}

// Stop signals the running daemon to shut down and waits for it to exit.
func (command) Stop(flags StopFlags) error {
	settings, err := config.LoadSettings(flags.ConfigPath)
	if err != nil {
		return err
	}

	pid, err := lock.ReadOwner(settings.LockFile)
	if os.IsNotExist(err) {
		return errNotRunning
	}
	if err != nil {
		return fmt.Errorf("read lock file %s: %w", settings.LockFile, err)
	}
	if !lock.Alive(pid) {
		return fmt.Errorf("%w (stale lock, pid %d)", errNotRunning, pid)
	}

	if err := sendShutdownSignal(pid); err != nil {
		return fmt.Errorf("signal daemon pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(flags.Wait)
	for time.Now().Before(deadline) {
		if !lock.Alive(pid) {
			fmt.Printf("procguard daemon (pid %d) stopped\n", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon pid %d did not exit within %s", pid, flags.Wait)
}

// Restart stops a running daemon, then starts a fresh one.
func (c command) Restart(flags RestartFlags) error {
	if err := c.Stop(StopFlags{ConfigPath: flags.ConfigPath, Wait: flags.Wait}); err != nil {
		return err
	}
	return c.Start(StartFlags{
		ConfigPath: flags.ConfigPath,
		Daemonize:  flags.Daemonize,
		LogFile:    flags.LogFile,
	})
}

// Reload asks the running daemon to re-read its policy file.
func (command) Reload(flags ReloadFlags) error {
	settings, err := config.LoadSettings(flags.ConfigPath)
	if err != nil {
		return err
	}

	pid, err := lock.ReadOwner(settings.LockFile)
	if os.IsNotExist(err) {
		return errNotRunning
	}
	if err != nil {
		return fmt.Errorf("read lock file %s: %w", settings.LockFile, err)
	}
	if !lock.Alive(pid) {
		return fmt.Errorf("%w (stale lock, pid %d)", errNotRunning, pid)
	}

	if err := sendReloadSignal(pid); err != nil {
		return err
	}
	fmt.Printf("reload requested (daemon pid %d)\n", pid)
	return nil
}

// Status queries the running daemon's status API and prints the result.
func (command) Status(flags StatusFlags) error {
	settings, err := config.LoadSettings(flags.ConfigPath)
	if err != nil {
		return err
	}

	apiURL := flags.APIUrl
	if apiURL == "" {
		apiURL = "http://" + settings.Listen
	}

	client := NewAPIClient(apiURL, flags.APITimeout)
	st, err := client.GetStatus()
	if err != nil {
		return err
	}
	return printStatus(os.Stdout, st, flags.Name)
}
