package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "cognitia",
	Short:        "cognitia finds topic mentions in social media posts",
	Long:         "Finds dictionary topics (titles and aliases) in post text with an Aho-Corasick automaton.",
	SilenceUsage: true,
}

// projectRoot returns the project root (cwd by default).
func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(healthCmd)
}
