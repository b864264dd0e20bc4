package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/corey/cognitia/internal/adapters/dictfile"
	"github.com/corey/cognitia/internal/ports"
	"github.com/spf13/cobra"
)

var (
	topicsJSON   bool
	topicTitle   string
	topicURL     string
	topicSummary string
	topicAliases []string
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List and edit dictionary topics",
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every topic",
	RunE:  runTopicsList,
}

var topicsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsShow,
}

var topicsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a topic, or update the one with the same URL",
	RunE:  runTopicsAdd,
}

var topicsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsRemove,
}

func init() {
	topicsCmd.AddCommand(topicsListCmd)
	topicsCmd.AddCommand(topicsShowCmd)
	topicsCmd.AddCommand(topicsAddCmd)
	topicsCmd.AddCommand(topicsRemoveCmd)

	topicsListCmd.Flags().BoolVar(&topicsJSON, "json", false, "Print topics as JSON")

	topicsAddCmd.Flags().StringVar(&topicTitle, "title", "", "Canonical title (required)")
	topicsAddCmd.Flags().StringVar(&topicURL, "url", "", "Topic page URL (required, the upsert key)")
	topicsAddCmd.Flags().StringVar(&topicSummary, "summary", "", "Short summary")
	topicsAddCmd.Flags().StringSliceVar(&topicAliases, "alias", nil, "Alias (repeatable or comma-separated)")
	topicsAddCmd.MarkFlagRequired("title")
	topicsAddCmd.MarkFlagRequired("url")
}

func runTopicsList(cmd *cobra.Command, args []string) error {
	topics, err := listTopics(projectRoot())
	if err != nil {
		return err
	}
	if topicsJSON {
		return writeJSON(os.Stdout, topics)
	}
	fmt.Print(formatTopics(topics))
	return nil
}

func runTopicsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	root := projectRoot()
	var topic *ports.TopicRecord
	if client := daemonClient(root); client != nil {
		topic, err = client.Topic(id)
	} else {
		err = withStore(root, func(ctx context.Context, store ports.TopicStore) error {
			t, err := store.GetTopic(ctx, id)
			topic = &t
			return err
		})
	}
	if err != nil {
		return err
	}
	fmt.Print(formatTopic(topic))
	return nil
}

func runTopicsAdd(cmd *cobra.Command, args []string) error {
	record := ports.TopicRecord{
		Title:   topicTitle,
		URL:     topicURL,
		Summary: topicSummary,
		Aliases: topicAliases,
	}
	if _, err := record.Normalize(); err != nil {
		return err
	}

	root := projectRoot()
	if client := daemonClient(root); client != nil {
		if _, err := client.Upsert([]ports.TopicRecord{record}); err != nil {
			return err
		}
		fmt.Printf("saved %q (daemon is rebuilding)\n", record.Title)
		return nil
	}

	return withStore(root, func(ctx context.Context, store ports.TopicStore) error {
		res, err := dictfile.Import(ctx, store, []ports.TopicRecord{record})
		if err != nil {
			return err
		}
		if res.Upserted == 0 {
			return fmt.Errorf("topic %q was rejected", record.Title)
		}
		fmt.Printf("saved %q\n", record.Title)
		return nil
	})
}

func runTopicsRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	root := projectRoot()
	if client := daemonClient(root); client != nil {
		err = client.DeleteTopic(id)
	} else {
		err = withStore(root, func(ctx context.Context, store ports.TopicStore) error {
			return store.DeleteTopic(ctx, id)
		})
	}
	if err != nil {
		return err
	}
	fmt.Printf("removed topic %d\n", id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid topic id %q", s)
	}
	return id, nil
}
