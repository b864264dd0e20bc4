package matcher

import (
	"slices"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/corey/cognitia/internal/domain/automaton"
	"github.com/corey/cognitia/internal/ports"
)

// Match is one resolved topic mention. Offsets are half-open byte offsets
// into the text passed to Search; MatchedText keeps the original casing.
type Match struct {
	Topic       ports.TopicRecord `json:"topic"`
	StartIndex  int               `json:"startIndex"`
	EndIndex    int               `json:"endIndex"`
	MatchedText string            `json:"matchedText"`
}

// Snapshot is one complete, immutable build of the dictionary. Searches
// hold a reference for their whole duration, so a concurrent rebuild never
// changes what an in-flight search sees.
type Snapshot struct {
	ID           string // ULID, unique per build
	Generation   uint64 // 0 for dry builds, then 1, 2, ... per swap
	BuiltAt      time.Time
	TopicCount   int
	PatternCount int
	Problems     []*ConfigurationError // patterns skipped while compiling

	topics  []ports.TopicRecord
	owners  [][]int32
	scanner ports.Scanner
}

type candidate struct {
	topic int32
	start int
	end   int
}

func (c candidate) length() int { return c.end - c.start }

// Search scans text once and returns the non-overlapping, boundary-respecting
// matches ordered by StartIndex. Never returns nil.
func (s *Snapshot) Search(text string) []Match {
	if s == nil || s.scanner == nil || text == "" {
		return []Match{}
	}

	var cands []candidate
	s.scanner.Scan(text, func(h ports.Hit) {
		if h.Pattern < 0 || h.Pattern >= len(s.owners) {
			return
		}
		if h.Start < 0 || h.End > len(text) || h.Start >= h.End {
			return
		}
		if !atWordBoundary(text, h.Start, h.End) {
			return
		}
		for _, ti := range s.owners[h.Pattern] {
			cands = append(cands, candidate{topic: ti, start: h.Start, end: h.End})
		}
	})

	kept := resolveOverlaps(cands)
	matches := make([]Match, 0, len(kept))
	for _, c := range kept {
		topic := s.topics[c.topic]
		topic.Aliases = slices.Clone(topic.Aliases)
		matches = append(matches, Match{
			Topic:       topic,
			StartIndex:  c.start,
			EndIndex:    c.end,
			MatchedText: text[c.start:c.end],
		})
	}
	return matches
}

// Topics returns a copy of the topic list the snapshot was built from.
func (s *Snapshot) Topics() []ports.TopicRecord {
	if s == nil {
		return nil
	}
	return slices.Clone(s.topics)
}

// atWordBoundary reports whether the runes just outside [start, end) are
// non-word runes or text edges. Stops "AI" matching inside "CHAIN".
func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if automaton.IsWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if automaton.IsWordRune(r) {
			return false
		}
	}
	return true
}

// resolveOverlaps keeps the longest mention within each overlapping cluster.
// Candidates are ordered by start, longer first on ties; a candidate that
// overlaps the last accepted match replaces it only when strictly longer.
func resolveOverlaps(cands []candidate) []candidate {
	if len(cands) <= 1 {
		return cands
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].length() > cands[j].length()
	})

	kept := make([]candidate, 0, len(cands))
	lastEnd := -1
	for _, c := range cands {
		switch {
		case c.start >= lastEnd:
			kept = append(kept, c)
			lastEnd = c.end
		case c.length() > kept[len(kept)-1].length():
			kept[len(kept)-1] = c
			lastEnd = c.end
		}
	}
	return kept
}
