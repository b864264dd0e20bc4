package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/app"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the cognitia daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	sockPath := socket.SocketPath(root)

	// Check if already running
	client := socket.NewClient(sockPath)
	if client.Ping() {
		fmt.Println("daemon already running")
		return nil
	}

	// Store, seed, matcher, coordinator, socket and HTTP servers
	a, err := app.New(app.Config{ProjectRoot: root})
	if err != nil {
		if isDBLockError(err) {
			return fmt.Errorf("%s", diagnoseDBLock(root))
		}
		return fmt.Errorf("init: %w", err)
	}

	if err := a.Start(); err != nil {
		a.Stop()
		return err
	}
	if err := a.Paths.WritePID(os.Getpid()); err != nil {
		a.Logger().Warn("write pid file", "err", err)
	}
	defer a.Paths.CleanEphemeral()

	st := a.Matcher.Stats()
	fmt.Printf("cognitia daemon started at %s (%d topics, %d patterns)\n", sockPath, st.TopicCount, st.PatternCount)
	if a.WebServer != nil && a.WebServer.Port() != 0 {
		fmt.Printf("  HTTP API: %s\n", a.WebServer.URL())
	}

	// Wait for a signal or a remote shutdown request
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-a.Server.ShutdownCh():
	}

	fmt.Println("\nshutting down...")
	return a.Stop()
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	sockPath := socket.SocketPath(root)
	client := socket.NewClient(sockPath)

	if !client.Ping() {
		fmt.Println("daemon is not running")
		return nil
	}

	if err := client.Shutdown(); err != nil {
		return err
	}

	fmt.Println("daemon stopped")
	return nil
}
