package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/corey/cognitia/internal/adapters/dictfile"
	"github.com/corey/cognitia/internal/ports"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <topics.yaml>",
	Short: "Upsert topics from a YAML dictionary file",
	Long:  "Topics are matched by URL, so re-importing an edited file updates topics in place.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export [topics.yaml]",
	Short: "Write every topic as a YAML dictionary file (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func runImport(cmd *cobra.Command, args []string) error {
	dict, err := dictfile.Load(args[0])
	if err != nil {
		return err
	}
	for _, e := range dict.Skipped {
		fmt.Fprintf(os.Stderr, "skipping %v\n", e)
	}

	root := projectRoot()
	var res dictfile.ImportResult
	if client := daemonClient(root); client != nil {
		r, err := client.Upsert(dict.Topics)
		if err != nil {
			return err
		}
		res = *r
	} else {
		err = withStore(root, func(ctx context.Context, store ports.TopicStore) error {
			res, err = dictfile.Import(ctx, store, dict.Topics)
			return err
		})
		if err != nil {
			return err
		}
	}

	res.Skipped += len(dict.Skipped)
	fmt.Printf("imported %d topics", res.Upserted)
	if res.Skipped > 0 {
		fmt.Printf(" (%d skipped)", res.Skipped)
	}
	fmt.Println()
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	topics, err := listTopics(projectRoot())
	if err != nil {
		return err
	}
	data, err := dictfile.Encode(topics)
	if err != nil {
		return err
	}
	if len(args) == 0 || args[0] == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return err
	}
	fmt.Printf("exported %d topics to %s\n", len(topics), args[0])
	return nil
}

// listTopics asks the daemon, or reads the store directly.
func listTopics(root string) ([]ports.TopicRecord, error) {
	if client := daemonClient(root); client != nil {
		res, err := client.Topics()
		if err != nil {
			return nil, err
		}
		return res.Topics, nil
	}
	var topics []ports.TopicRecord
	err := withStore(root, func(ctx context.Context, store ports.TopicStore) error {
		var err error
		topics, err = store.ListAllTopics(ctx)
		return err
	})
	return topics, err
}
