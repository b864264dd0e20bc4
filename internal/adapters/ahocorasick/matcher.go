// Package ahocorasick provides a DFA-backed ports.Scanner. It wraps the
// petar-dambovaliev/aho-corasick library and is selected with
// matcher.engine: dfa. The native automaton in internal/domain/automaton is
// the default engine; both report the same hits for the same dictionary.
package ahocorasick

import (
	"unicode"
	"unicode/utf8"

	"github.com/corey/cognitia/internal/ports"
	aho "github.com/petar-dambovaliev/aho-corasick"
)

// Scanner implements ports.Scanner on a compiled DFA. Patterns are expected
// pre-folded (lower case); text folding happens per scan.
type Scanner struct {
	automaton aho.AhoCorasick
	patterns  []string
	empty     bool
}

// NewScanner compiles patterns into a DFA. Its signature matches
// ports.ScannerFactory.
func NewScanner(patterns []string) ports.Scanner {
	p := make([]string, len(patterns))
	copy(p, patterns)

	s := &Scanner{patterns: p, empty: true}
	for _, pat := range p {
		if pat != "" {
			s.empty = false
			break
		}
	}
	if s.empty {
		return s
	}

	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		AsciiCaseInsensitive: true,
		DFA:                  true,
	})
	s.automaton = builder.Build(p)
	return s
}

// Scan reports every overlapping occurrence of every pattern in text with
// byte offsets into text. ASCII text is scanned as-is; anything else is
// folded rune by rune first and the offsets mapped back.
func (s *Scanner) Scan(text string, emit func(ports.Hit)) {
	if s.empty || text == "" {
		return
	}

	if isASCII(text) {
		s.scan([]byte(text), nil, emit)
		return
	}
	folded, offsets := foldWithOffsets(text)
	s.scan(folded, offsets, emit)
}

func (s *Scanner) scan(content []byte, offsets []int, emit func(ports.Hit)) {
	iter := s.automaton.IterOverlappingByte(content)
	for next := iter.Next(); next != nil; next = iter.Next() {
		m := *next
		if m.End() <= m.Start() || s.patterns[m.Pattern()] == "" {
			continue
		}
		start, end := m.Start(), m.End()
		if offsets != nil {
			start, end = offsets[start], offsets[end]
		}
		emit(ports.Hit{Pattern: m.Pattern(), Start: start, End: end})
	}
}

// PatternCount returns the number of patterns in the automaton.
func (s *Scanner) PatternCount() int {
	return len(s.patterns)
}

// Pattern returns the pattern string at the given index.
func (s *Scanner) Pattern(idx int) string {
	if idx < 0 || idx >= len(s.patterns) {
		return ""
	}
	return s.patterns[idx]
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// foldWithOffsets lower-cases text rune by rune. offsets[i] is the byte
// offset in text of the rune that produced folded byte i; offsets has one
// extra trailing entry equal to len(text). Invalid bytes are copied through.
func foldWithOffsets(text string) ([]byte, []int) {
	folded := make([]byte, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	var buf [utf8.UTFMax]byte

	for off := 0; off < len(text); {
		r, w := utf8.DecodeRuneInString(text[off:])
		if r == utf8.RuneError && w == 1 {
			folded = append(folded, text[off])
			offsets = append(offsets, off)
			off++
			continue
		}
		n := utf8.EncodeRune(buf[:], unicode.ToLower(r))
		for i := 0; i < n; i++ {
			folded = append(folded, buf[i])
			offsets = append(offsets, off)
		}
		off += w
	}
	offsets = append(offsets, len(text))
	return folded, offsets
}
