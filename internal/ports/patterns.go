package ports

// Hit is one raw pattern occurrence reported by a Scanner. Start and End are
// half-open byte offsets into the text passed to Scan (never the folded copy).
type Hit struct {
	Pattern int // index into the patterns slice the scanner was built from
	Start   int
	End     int
}

// Scanner finds every occurrence of every pattern in a single pass over the
// text (Aho-Corasick). This is O(n + z) where n=text length and z=number of
// hits, independent of how many patterns were compiled.
//
// Scanners are immutable once built and safe for concurrent use. Patterns
// are handed over already case-folded; the scanner folds the text the same
// way while walking it. Overlapping hits are all reported: boundary checks
// and overlap resolution belong to the caller.
type Scanner interface {
	// Scan calls emit for each hit. Hits arrive roughly in order of
	// increasing End; callers that need a total order sort them.
	Scan(text string, emit func(Hit))

	// PatternCount returns the number of patterns compiled into the scanner.
	PatternCount() int
}

// ScannerFactory compiles folded patterns into a Scanner. Empty patterns
// must never be passed in.
type ScannerFactory func(patterns []string) Scanner
