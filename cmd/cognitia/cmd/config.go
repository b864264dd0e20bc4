package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/app"
	"github.com/corey/cognitia/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long:  "Shows project root, store, engine, socket path, and daemon status. No daemon required.",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .cognitia/config.yaml",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)
	sockPath := socket.SocketPath(root)

	settings, err := config.Load(paths.Config)
	if err != nil {
		return err
	}

	configSource := paths.Config
	if _, err := os.Stat(paths.Config); err != nil {
		configSource = "defaults (no config file)"
	}
	storePath := settings.Store.Path
	if storePath == "" {
		storePath = paths.DB
		if settings.Store.Backend == config.BackendSQLite {
			storePath = paths.SQLiteDB
		}
	}
	seedSource := settings.Dictionary.SeedPath
	if seedSource == "" {
		seedSource = "embedded"
	}

	client := socket.NewClient(sockPath)
	daemonRunning := client.Ping()
	daemonStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if daemonRunning {
		daemonStatus = fmt.Sprintf("%s✓ running%s", colorGreen, colorReset)
	}

	fmt.Printf("%scognitia config%s\n", colorBold, colorReset)
	fmt.Printf("  Root:       %s\n", root)
	fmt.Printf("  Config:     %s\n", configSource)
	fmt.Printf("  Store:      %s (%s)\n", storePath, settings.Store.Backend)
	fmt.Printf("  Engine:     %s\n", settings.Matcher.Engine)
	fmt.Printf("  Seed:       %s", seedSource)
	if settings.Dictionary.Watch {
		fmt.Print(" (watched)")
	}
	fmt.Println()
	fmt.Printf("  Log:        %s (%s)\n", paths.DaemonLog, settings.Log.Level)
	fmt.Printf("  Socket:     %s\n", sockPath)
	fmt.Printf("  Daemon:     %s\n", daemonStatus)

	if daemonRunning {
		if portData, err := os.ReadFile(paths.PortFile); err == nil {
			fmt.Printf("  HTTP API:   http://localhost:%s\n", strings.TrimSpace(string(portData)))
		}
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	paths := app.NewPaths(projectRoot())
	if _, err := os.Stat(paths.Config); err == nil {
		return fmt.Errorf("%s already exists", paths.Config)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.Save(paths.Config, config.Default()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", paths.Config)
	return nil
}
