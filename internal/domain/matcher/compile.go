package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/corey/cognitia/internal/domain/automaton"
	"github.com/corey/cognitia/internal/ports"
)

// patternTable is the flattened dictionary: unique folded patterns, each
// owned by one or more topics. Two topics only share a pattern when their
// folded strings are identical; the first-inserted owner wins that span.
type patternTable struct {
	patterns []string
	owners   [][]int32 // pattern index -> topic indexes, insertion order
	problems []*ConfigurationError
}

// compile folds and validates every title and alias. Bad patterns are
// collected as problems and skipped. Duplicates within one topic (e.g. an
// alias equal to the title modulo case) collapse to a single entry.
func compile(topics []ports.TopicRecord) patternTable {
	var tbl patternTable
	index := make(map[string]int, len(topics))

	for ti, t := range topics {
		seen := make(map[string]bool, 1+len(t.Aliases))
		raws := make([]string, 0, 1+len(t.Aliases))
		raws = append(raws, t.Title)
		raws = append(raws, t.Aliases...)

		for _, raw := range raws {
			p, problem := normalizePattern(t.ID, raw)
			if problem != nil {
				tbl.problems = append(tbl.problems, problem)
				continue
			}
			if seen[p] {
				continue
			}
			seen[p] = true

			pi, ok := index[p]
			if !ok {
				pi = len(tbl.patterns)
				index[p] = pi
				tbl.patterns = append(tbl.patterns, p)
				tbl.owners = append(tbl.owners, nil)
			}
			tbl.owners[pi] = append(tbl.owners[pi], int32(ti))
		}
	}
	return tbl
}

func normalizePattern(topicID int64, raw string) (string, *ConfigurationError) {
	if !utf8.ValidString(raw) {
		return "", &ConfigurationError{TopicID: topicID, Pattern: raw, Reason: "invalid UTF-8"}
	}
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", &ConfigurationError{TopicID: topicID, Pattern: raw, Reason: "empty pattern"}
	}
	return automaton.Fold(p), nil
}
