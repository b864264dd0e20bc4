package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the daemon's matcher from the store now",
	Long:  "Fetches every topic and swaps in a fresh automaton. On failure the daemon keeps serving the previous one.",
	RunE:  runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	client := daemonClient(projectRoot())
	if client == nil {
		return fmt.Errorf("daemon not running. Start with: cognitia daemon start")
	}

	result, err := client.Rebuild()
	if err != nil {
		return err
	}

	fmt.Print(formatRebuild(result))
	return nil
}
