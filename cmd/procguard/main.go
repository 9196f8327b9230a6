package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the root command and all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	startFlags := &StartFlags{}
	stopFlags := &StopFlags{}
	restartFlags := &RestartFlags{}
	reloadFlags := &ReloadFlags{}
	statusFlags := &StatusFlags{}

	cmd := command{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(cmd, globalFlags, startFlags),
		createStopCommand(cmd, globalFlags, stopFlags),
		createRestartCommand(cmd, globalFlags, restartFlags),
		createReloadCommand(cmd, globalFlags, reloadFlags),
		createStatusCommand(cmd, globalFlags, statusFlags),
	)
	return root
}

// createRootCommand creates the root command with the persistent config flag.
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "procguard",
		Short: "Process health monitoring and restart daemon",
		Long: `Procguard monitors a configured set of processes, restarts the ones
that crash, and alerts when resource thresholds are exceeded.

Examples:
  procguard start                         # Run the daemon in the foreground
  procguard start --daemonize             # Run in the background
  procguard status                        # Show monitored process status
  procguard reload                        # Re-read the policy file
  procguard stop                          # Stop the running daemon`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

// createStartCommand creates the start subcommand
func createStartCommand(cmd command, globalFlags *GlobalFlags, startFlags *StartFlags) *cobra.Command {
	c := &cobra.Command{
		Use:   "start",
		Short: "Start the monitoring daemon",
		Long: `Start the procguard daemon. Only one instance may run per host;
a second start fails while the first holds the lock file.

Examples:
  procguard start
  procguard start --config=procguard.toml
  procguard start --daemonize --logfile=/var/log/procguard.log`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Start(StartFlags{
				ConfigPath: globalFlags.ConfigPath,
				Daemonize:  startFlags.Daemonize,
				LogFile:    startFlags.LogFile,
			})
		},
	}
	c.Flags().BoolVar(&startFlags.Daemonize, "daemonize", false, "run as daemon in background")
	c.Flags().StringVar(&startFlags.LogFile, "logfile", "", "redirect daemon output to file when daemonized")
	return c
}

// createStopCommand creates the stop subcommand
func createStopCommand(cmd command, globalFlags *GlobalFlags, stopFlags *StopFlags) *cobra.Command {
	c := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running procguard daemon and wait for it to exit.
Fails when no daemon is running.

Examples:
  procguard stop
  procguard stop --wait=10s`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Stop(StopFlags{
				ConfigPath: globalFlags.ConfigPath,
				Wait:       stopFlags.Wait,
			})
		},
	}
	c.Flags().DurationVar(&stopFlags.Wait, "wait", 10*time.Second, "time to wait for the daemon to exit")
	return c
}

// createRestartCommand creates the restart subcommand
func createRestartCommand(cmd command, globalFlags *GlobalFlags, restartFlags *RestartFlags) *cobra.Command {
	c := &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		Long: `Stop the running daemon (if any) and start a fresh one.

Examples:
  procguard restart
  procguard restart --daemonize`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Restart(RestartFlags{
				ConfigPath: globalFlags.ConfigPath,
				Wait:       restartFlags.Wait,
				Daemonize:  restartFlags.Daemonize,
				LogFile:    restartFlags.LogFile,
			})
		},
	}
	c.Flags().DurationVar(&restartFlags.Wait, "wait", 10*time.Second, "time to wait for the old daemon to exit")
	c.Flags().BoolVar(&restartFlags.Daemonize, "daemonize", false, "run the new daemon in background")
	c.Flags().StringVar(&restartFlags.LogFile, "logfile", "", "redirect daemon output to file when daemonized")
	return c
}

// createReloadCommand creates the reload subcommand
func createReloadCommand(cmd command, globalFlags *GlobalFlags, reloadFlags *ReloadFlags) *cobra.Command {
	c := &cobra.Command{
		Use:   "reload",
		Short: "Reload the policy file",
		Long: `Ask the running daemon to re-read its policy file without
restarting. Restart counters of unchanged processes are preserved.

Examples:
  procguard reload`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Reload(ReloadFlags{ConfigPath: globalFlags.ConfigPath})
		},
	}
	return c
}

// createStatusCommand creates the status subcommand
func createStatusCommand(cmd command, globalFlags *GlobalFlags, statusFlags *StatusFlags) *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Show monitored process status",
		Long: `Query the running daemon for the state of every monitored process.

Examples:
  procguard status                  # All processes
  procguard status --name=nginx     # One process
  procguard status --api-url=http://127.0.0.1:9321`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Status(StatusFlags{
				ConfigPath: globalFlags.ConfigPath,
				Name:       statusFlags.Name,
				APIUrl:     statusFlags.APIUrl,
				APITimeout: statusFlags.APITimeout,
			})
		},
	}
	c.Flags().StringVar(&statusFlags.Name, "name", "", "process name (optional)")
	c.Flags().StringVar(&statusFlags.APIUrl, "api-url", "", "daemon URL (default derives from config listen address)")
	c.Flags().DurationVar(&statusFlags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return c
}
