// Package automaton provides the native Aho-Corasick automaton used to find
// topic mentions. Patterns are inserted into a rune-keyed trie, failure links
// are computed breadth-first, and every node carries an output link to the
// nearest node on its failure chain that terminates a pattern. Collecting the
// hits at a position therefore costs only the number of hits produced.
//
// Matching is case-insensitive: patterns and text are folded rune by rune
// with unicode.ToLower, but reported offsets always point into the original
// text.
package automaton

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/corey/cognitia/internal/ports"
)

const (
	root int32 = 0
	none int32 = -1
)

type node struct {
	next    map[rune]int32
	fail    int32
	outLink int32   // nearest failure-chain node with outputs, none if absent
	out     []int32 // patterns terminating exactly here, insertion order
	depth   int32   // runes from root
}

// Automaton is an immutable Aho-Corasick automaton. Safe for concurrent Scan
// calls once Build returns.
type Automaton struct {
	nodes    []node
	patterns int
	maxDepth int
}

var _ ports.Scanner = (*Automaton)(nil)

// Fold applies the case folding shared by patterns and text.
func Fold(s string) string {
	return strings.Map(unicode.ToLower, s)
}

// IsWordRune reports whether r is an identifier character: a letter, a
// digit, or underscore. Matches must not touch a word rune on either side.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Build compiles patterns into an automaton. Pattern indexes in emitted hits
// refer to positions in the patterns slice. Empty patterns are skipped, they
// would otherwise match at every position.
func Build(patterns []string) *Automaton {
	a := &Automaton{
		nodes:    []node{{fail: root, outLink: none}},
		patterns: len(patterns),
	}
	for i, p := range patterns {
		if p == "" {
			continue
		}
		a.insert(Fold(p), int32(i))
	}
	a.link()
	return a
}

// NewScanner is a ports.ScannerFactory backed by Build.
func NewScanner(patterns []string) ports.Scanner {
	return Build(patterns)
}

func (a *Automaton) insert(pattern string, idx int32) {
	cur := root
	for _, r := range pattern {
		next, ok := a.nodes[cur].next[r]
		if !ok {
			if a.nodes[cur].next == nil {
				a.nodes[cur].next = make(map[rune]int32)
			}
			next = int32(len(a.nodes))
			a.nodes[cur].next[r] = next
			a.nodes = append(a.nodes, node{
				fail:    root,
				outLink: none,
				depth:   a.nodes[cur].depth + 1,
			})
		}
		cur = next
	}
	a.nodes[cur].out = append(a.nodes[cur].out, idx)
	if d := int(a.nodes[cur].depth); d > a.maxDepth {
		a.maxDepth = d
	}
}

// link computes failure and output links breadth-first. A node's failure
// target is always shallower, so it is fully linked before the node is.
func (a *Automaton) link() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[root].next {
		queue = append(queue, child)
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for r, child := range a.nodes[cur].next {
			queue = append(queue, child)
			a.nodes[child].fail = a.failTarget(a.nodes[cur].fail, r)
		}

		fail := a.nodes[cur].fail
		if fail != root {
			if len(a.nodes[fail].out) > 0 {
				a.nodes[cur].outLink = fail
			} else {
				a.nodes[cur].outLink = a.nodes[fail].outLink
			}
		}
	}
}

// failTarget walks the failure chain from f looking for a transition on r.
// Depth-one nodes keep their zero-value failure link to root.
func (a *Automaton) failTarget(f int32, r rune) int32 {
	for {
		if next, ok := a.nodes[f].next[r]; ok {
			return next
		}
		if f == root {
			return root
		}
		f = a.nodes[f].fail
	}
}

func (a *Automaton) step(state int32, r rune) int32 {
	for {
		if next, ok := a.nodes[state].next[r]; ok {
			return next
		}
		if state == root {
			return root
		}
		state = a.nodes[state].fail
	}
}

// Scan walks text once and emits every pattern occurrence. Invalid UTF-8
// bytes are consumed one at a time as utf8.RuneError.
func (a *Automaton) Scan(text string, emit func(ports.Hit)) {
	if a.maxDepth == 0 {
		return
	}

	// Byte offsets of the last maxDepth runes: a hit of depth d ending at
	// rune i starts at rune i-d+1.
	starts := make([]int, a.maxDepth)
	state := root
	i := 0
	for off := 0; off < len(text); i++ {
		r, w := utf8.DecodeRuneInString(text[off:])
		starts[i%len(starts)] = off
		state = a.step(state, unicode.ToLower(r))
		end := off + w

		for s := state; s != none; s = a.nodes[s].outLink {
			n := &a.nodes[s]
			if len(n.out) == 0 {
				continue
			}
			start := starts[(i-int(n.depth)+1)%len(starts)]
			for _, p := range n.out {
				emit(ports.Hit{Pattern: int(p), Start: start, End: end})
			}
		}
		off = end
	}
}

// PatternCount returns the number of patterns passed to Build, including
// skipped empty ones, so indexes line up with the caller's slice.
func (a *Automaton) PatternCount() int {
	return a.patterns
}

// NodeCount returns the number of trie nodes, root included.
func (a *Automaton) NodeCount() int {
	return len(a.nodes)
}
