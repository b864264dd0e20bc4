package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/corey/cognitia/internal/adapters/socket"
	"github.com/corey/cognitia/internal/domain/matcher"
	"github.com/corey/cognitia/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// formatMatches formats search matches for terminal display.
//
//	2 matches │ 41µs
//	  [0-9]    Elon Musk → Elon Musk  https://...
//	  [18-24]  SpaceX → SpaceX  https://...
func formatMatches(matches []matcher.Match, elapsed string) string {
	var sb strings.Builder
	noun := "matches"
	if len(matches) == 1 {
		noun = "match"
	}
	sb.WriteString(fmt.Sprintf("%s%d %s%s", colorBold, len(matches), noun, colorReset))
	if elapsed != "" {
		sb.WriteString(fmt.Sprintf(" │ %s", elapsed))
	}
	sb.WriteString("\n")

	for _, m := range matches {
		span := fmt.Sprintf("[%d-%d]", m.StartIndex, m.EndIndex)
		sb.WriteString(fmt.Sprintf("  %-9s %s%s%s", span, colorCyan, m.MatchedText, colorReset))
		if m.MatchedText != m.Topic.Title {
			sb.WriteString(fmt.Sprintf(" → %s", m.Topic.Title))
		}
		if m.Topic.URL != "" {
			sb.WriteString(fmt.Sprintf("  %s%s%s", colorGray, m.Topic.URL, colorReset))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatHealth formats a HealthResult for terminal display.
func formatHealth(h *socket.HealthResult) string {
	statusColor := colorGreen
	if h.Status != "ok" {
		statusColor = colorYellow
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%scognitia daemon%s\n", colorBold, colorReset))
	sb.WriteString(fmt.Sprintf("  Status:    %s%s%s\n", statusColor, h.Status, colorReset))
	sb.WriteString(fmt.Sprintf("  Store:     %s\n", h.Store))
	sb.WriteString(fmt.Sprintf("  Engine:    %s\n", h.Engine))
	sb.WriteString(fmt.Sprintf("  Topics:    %d\n", h.Matcher.TopicCount))
	sb.WriteString(fmt.Sprintf("  Patterns:  %d (%d skipped)\n", h.Matcher.PatternCount, h.Matcher.Skipped))
	sb.WriteString(fmt.Sprintf("  Snapshot:  %s (generation %d)\n", h.Matcher.SnapshotID, h.Matcher.Generation))
	sb.WriteString(fmt.Sprintf("  Rebuilds:  %d ok, %d failed\n", h.Matcher.Rebuilds, h.Matcher.Failures))
	if h.Matcher.LastError != "" {
		sb.WriteString(fmt.Sprintf("  Last err:  %s%s%s\n", colorYellow, h.Matcher.LastError, colorReset))
	}
	sb.WriteString(fmt.Sprintf("  Uptime:    %s\n", h.Uptime))
	return sb.String()
}

// formatRebuild formats a RebuildResult for terminal display.
func formatRebuild(r *socket.RebuildResult) string {
	return fmt.Sprintf("%srebuilt%s snapshot %s (generation %d): %d topics, %d patterns, %d skipped │ %dms\n",
		colorBold, colorReset, r.Snapshot, r.Generation, r.TopicCount, r.PatternCount, r.Skipped, r.ElapsedMs)
}

// formatTopics formats topics as one line each.
func formatTopics(topics []ports.TopicRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%d topics%s\n", colorBold, len(topics), colorReset))
	for _, t := range topics {
		sb.WriteString(fmt.Sprintf("  %s%6d%s  %s", colorGray, t.ID, colorReset, t.Title))
		if len(t.Aliases) > 0 {
			sb.WriteString(fmt.Sprintf("  %s(%s)%s", colorCyan, strings.Join(t.Aliases, ", "), colorReset))
		}
		sb.WriteString(fmt.Sprintf("  %s%s%s\n", colorGray, t.URL, colorReset))
	}
	return sb.String()
}

// formatTopic formats one topic in full.
func formatTopic(t *ports.TopicRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%s%s  %s#%d%s\n", colorBold, t.Title, colorReset, colorGray, t.ID, colorReset))
	if len(t.Aliases) > 0 {
		sb.WriteString(fmt.Sprintf("  Aliases:  %s\n", strings.Join(t.Aliases, ", ")))
	}
	sb.WriteString(fmt.Sprintf("  URL:      %s\n", t.URL))
	if t.Summary != "" {
		sb.WriteString(fmt.Sprintf("  Summary:  %s\n", t.Summary))
	}
	return sb.String()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
