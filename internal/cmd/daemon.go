package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"github.com/xcawolfe-amzn/cc-sessions/internal/daemon"
	"github.com/xcawolfe-amzn/cc-sessions/internal/daemonconfig"
	"github.com/xcawolfe-amzn/cc-sessions/internal/style"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: GroupServices,
	Short:   "Manage the cc-sessions hook daemon",
	RunE:    requireSubcommand,
	Long: `Manage the cc-sessions background daemon.

The daemon keeps the state, config, and git-snapshot caches warm across
hook invocations and serves them over a Unix-domain socket (spec §4.H).
Hook shims auto-spawn it on demand; these subcommands are for manual
inspection and control.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running",
	RunE:  runDaemonStatus,
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the daemon's log file",
	RunE:  runDaemonLogs,
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground (internal)",
	Hidden: true,
	RunE:   runDaemonRun,
}

var daemonLogLines int

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonRunCmd)

	daemonLogsCmd.Flags().IntVarP(&daemonLogLines, "lines", "n", 50, "Number of lines to show")

	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	bootstrap, err := daemonconfig.Load("")
	if err != nil {
		return fmt.Errorf("loading daemon bootstrap config: %w", err)
	}
	socketPath := bootstrap.SocketPath
	if socketPath == "" {
		socketPath = daemon.DefaultSocketPath()
	}

	if daemon.IsRunning(socketPath) {
		return fmt.Errorf("daemon already running at %s", socketPath)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable: %w", err)
	}
	spawn := exec.Command(self, "daemon", "run")
	spawn.Stdin = nil
	spawn.Stdout = nil
	spawn.Stderr = nil
	if err := spawn.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	time.Sleep(200 * time.Millisecond)

	if !daemon.IsRunning(socketPath) {
		return fmt.Errorf("daemon failed to start (check logs with 'cc-sessions daemon logs')")
	}

	fmt.Printf("%s Daemon started (socket %s)\n", style.Bold.Render("✓"), socketPath)
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	bootstrap, err := daemonconfig.Load("")
	if err != nil {
		return fmt.Errorf("loading daemon bootstrap config: %w", err)
	}
	socketPath := bootstrap.SocketPath
	if socketPath == "" {
		socketPath = daemon.DefaultSocketPath()
	}

	if !daemon.IsRunning(socketPath) {
		return fmt.Errorf("daemon is not running")
	}

	// The daemon's instance lock has no PID-signaling channel of its own,
	// so stop only unlinks the socket path: new clients can no longer
	// connect, while the daemon process keeps its already-bound listener
	// and runs until it receives SIGINT or SIGTERM.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stopping daemon: %w", err)
	}

	fmt.Printf("%s Daemon socket removed (%s)\n", style.Bold.Render("✓"), socketPath)
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	bootstrap, err := daemonconfig.Load("")
	if err != nil {
		return fmt.Errorf("loading daemon bootstrap config: %w", err)
	}
	socketPath := bootstrap.SocketPath
	if socketPath == "" {
		socketPath = daemon.DefaultSocketPath()
	}

	if daemon.IsRunning(socketPath) {
		fmt.Printf("%s Daemon is %s (%s)\n", style.Good.Render("●"), style.Bold.Render("running"), socketPath)
	} else {
		fmt.Printf("%s Daemon is %s\n", style.Dim.Render("○"), "not running")
		fmt.Printf("\nStart with: %s\n", style.Dim.Render("cc-sessions daemon start"))
	}
	return nil
}

func runDaemonLogs(cmd *cobra.Command, args []string) error {
	bootstrap, err := daemonconfig.Load("")
	if err != nil {
		return fmt.Errorf("loading daemon bootstrap config: %w", err)
	}
	logPath := bootstrap.Log.Path
	if logPath == "" {
		return fmt.Errorf("no log file configured (set [log].path in the daemon bootstrap TOML or ORCH_LOG_PATH)")
	}
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return fmt.Errorf("no log file found at %s", logPath)
	}

	tailCmd := exec.Command("tail", "-n", fmt.Sprintf("%d", daemonLogLines), logPath)
	tailCmd.Stdout = os.Stdout
	tailCmd.Stderr = os.Stderr
	return tailCmd.Run()
}

func runDaemonRun(cmd *cobra.Command, args []string) error {
	return daemon.Run("")
}
