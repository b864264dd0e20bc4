package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/app"
	"github.com/spf13/cobra"
)

// matchBatch is how many posts go to the daemon per request.
const matchBatch = 500

var matchCmd = &cobra.Command{
	Use:   "match [posts.jsonl]",
	Short: "Match a stream of posts",
	Long: "Reads one JSON post per line ({\"id\",\"text\"} or {\"id\",\"html\"}) from the file\n" +
		"or stdin and writes one JSON result per line with the post's matches.",
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	posts, err := readPosts(in)
	if err != nil {
		return err
	}

	var results []socket.PostResult
	if client := daemonClient(projectRoot()); client != nil {
		for i := 0; i < len(posts); i += matchBatch {
			end := min(i+matchBatch, len(posts))
			res, err := client.Match(posts[i:end])
			if err != nil {
				return err
			}
			results = append(results, res.Results...)
		}
	} else {
		err = withLocalApp(projectRoot(), func(a *app.App) error {
			results = a.MatchPosts(posts)
			return nil
		})
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func readPosts(r io.Reader) ([]socket.Post, error) {
	var posts []socket.Post
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var p socket.Post
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.ID == "" {
			p.ID = fmt.Sprint(line)
		}
		posts = append(posts, p)
	}
	return posts, scanner.Err()
}
