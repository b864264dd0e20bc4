package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/corey/cognitia/internal/adapters/dictfile"
	"github.com/corey/cognitia/internal/adapters/htmltext"
	"github.com/corey/cognitia/internal/app"
	"github.com/corey/cognitia/internal/config"
	"github.com/corey/cognitia/internal/domain/matcher"
	"github.com/spf13/cobra"
)

var (
	searchHTML   bool
	searchJSON   bool
	searchDict   string
	searchEngine string
)

// searchDaemon finds a running daemon for plain searches.
var searchDaemon = daemonClient

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find topic mentions in text",
	Long: "Searches text against the topic dictionary. Uses the daemon when it is running,\n" +
		"otherwise builds the matcher in-process from the store. Pass - to read stdin.\n" +
		"With --dict the dictionary is read straight from a YAML file instead.",
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchHTML, "html", false, "Treat input as HTML and match its visible text")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print matches as JSON")
	searchCmd.Flags().StringVar(&searchDict, "dict", "", "Match against a YAML dictionary file instead of the store")
	searchCmd.Flags().StringVar(&searchEngine, "engine", config.EngineNative, "Engine for --dict: native or dfa")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := checkEngine(searchEngine); err != nil {
		return err
	}
	text, err := inputText(args)
	if err != nil {
		return err
	}

	start := time.Now()
	var matches []matcher.Match
	elapsed := ""

	if searchDict != "" {
		matches, err = searchFile(searchDict, text, searchEngine, searchHTML)
		elapsed = time.Since(start).Round(time.Microsecond).String()
	} else if client := searchDaemon(projectRoot()); client != nil {
		res, cerr := client.Search(text, searchHTML)
		if cerr != nil {
			return cerr
		}
		matches, elapsed = res.Matches, res.Elapsed
	} else {
		err = withLocalApp(projectRoot(), func(a *app.App) error {
			matches = a.Search(text, searchHTML)
			return nil
		})
		elapsed = time.Since(start).Round(time.Microsecond).String()
	}
	if err != nil {
		return err
	}

	if searchJSON {
		return writeJSON(os.Stdout, matches)
	}
	fmt.Print(formatMatches(matches, elapsed))
	return nil
}

// checkEngine accepts the same engine names as matcher.engine in config.
func checkEngine(engine string) error {
	switch engine {
	case config.EngineNative, config.EngineDFA:
		return nil
	}
	return fmt.Errorf("--engine: unknown engine %q (want %s or %s)", engine, config.EngineNative, config.EngineDFA)
}

// searchFile builds a throwaway matcher over a dictionary file. It never
// touches the store or the daemon.
func searchFile(path, text, engine string, html bool) ([]matcher.Match, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	m := matcher.New(dictfile.FileProvider{Path: path, Logger: logger},
		matcher.WithLogger(logger),
		matcher.WithScannerFactory(app.ScannerFactory(engine)),
	)
	if err := m.Initialize(context.Background()); err != nil {
		return nil, err
	}
	if html {
		text = htmltext.Extract(text)
	}
	return m.Search(text), nil
}

// inputText joins args, or reads stdin when the only arg is "-".
func inputText(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
