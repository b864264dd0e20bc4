// Package socket implements a JSON-over-Unix-socket protocol for the cognitia daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
package socket

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"

	"github.com/corey/cognitia/internal/adapters/dictfile"
	"github.com/corey/cognitia/internal/domain/matcher"
	"github.com/corey/cognitia/internal/ports"
)

// SocketPath returns the Unix socket path for a given project root.
// Format: /tmp/cognitia-{first12hex}.sock
func SocketPath(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("/tmp/cognitia-%x.sock", h[:6])
}

// Method names for the protocol.
const (
	MethodSearch      = "search"
	MethodMatch       = "match"
	MethodRebuild     = "rebuild"
	MethodHealth      = "health"
	MethodTopics      = "topics"
	MethodTopic       = "topic"
	MethodUpsert      = "upsert"
	MethodDeleteTopic = "delete_topic"
	MethodShutdown    = "shutdown"
)

// Request is the wire format for client-to-server messages.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// SearchParams is the params for a search request. When HTML is true the
// text is treated as markup and reduced to visible text first.
type SearchParams struct {
	Text string `json:"text"`
	HTML bool   `json:"html,omitempty"`
}

// SearchResult is the result of a search request.
type SearchResult struct {
	Matches []matcher.Match `json:"matches"`
	Count   int             `json:"count"`
	Elapsed string          `json:"elapsed"`
}

// Post is one piece of content to match. Text wins over HTML when both are set.
type Post struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

// MatchParams is the params for a match request.
type MatchParams struct {
	Posts []Post `json:"posts"`
}

// PostResult pairs a post with its matches. Offsets refer to Text, which
// is the extracted text when the post was sent as HTML.
type PostResult struct {
	Post    Post            `json:"post"`
	Text    string          `json:"text"`
	Matches []matcher.Match `json:"matches"`
}

// MatchResult is the result of a match request.
type MatchResult struct {
	Results []PostResult `json:"results"`
}

// RebuildResult is the result of a rebuild request.
type RebuildResult struct {
	Snapshot     string `json:"snapshot"`
	Generation   uint64 `json:"generation"`
	TopicCount   int    `json:"topic_count"`
	PatternCount int    `json:"pattern_count"`
	Skipped      int    `json:"skipped"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status  string        `json:"status"`
	Store   string        `json:"store"`
	Engine  string        `json:"engine"`
	Uptime  string        `json:"uptime"`
	Matcher matcher.Stats `json:"matcher"`
}

// TopicParams selects one topic by ID.
type TopicParams struct {
	ID int64 `json:"id"`
}

// TopicsResult is the result of a topics request.
type TopicsResult struct {
	Topics []ports.TopicRecord `json:"topics"`
	Count  int                 `json:"count"`
}

// UpsertParams carries topics to insert or update by URL.
type UpsertParams struct {
	Topics []ports.TopicRecord `json:"topics"`
}

// UpsertResult is the result of an upsert request.
type UpsertResult = dictfile.ImportResult
