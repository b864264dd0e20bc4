// cognitia finds topic mentions in social media posts.
// Single binary: a daemon that keeps the topic matcher hot, plus a CLI.
package main

import (
	"os"

	"github.com/corey/cognitia/cmd/cognitia/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
