// Package dictfile reads and writes topic dictionaries as YAML:
//
//	topics:
//	  - title: Elon Musk
//	    url: https://grokipedia.com/page/Elon_Musk
//	    summary: ...
//	    aliases: [Musk]
//
// It backs the embedded seed, `cognitia import`, the watched dictionary
// file, and FileProvider for store-less matching.
package dictfile

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"strings"

	"github.com/corey/cognitia/internal/ports"
	"gopkg.in/yaml.v3"
)

// document is the on-disk form.
type document struct {
	Topics []ports.TopicRecord `yaml:"topics"`
}

// ErrDuplicateURL marks a row whose URL already appeared earlier in the file.
var ErrDuplicateURL = errors.New("duplicate url")

// RowError describes one dictionary row that was left out.
type RowError struct {
	Row   int // 1-based position in the file
	Title string
	URL   string
	Err   error
}

func (e *RowError) Error() string {
	if e.Title == "" {
		return fmt.Sprintf("topic #%d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("topic #%d (%s): %v", e.Row, e.Title, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Dictionary is a parsed file: the usable topics in file order, plus the
// rows that were skipped.
type Dictionary struct {
	Topics  []ports.TopicRecord
	Skipped []*RowError
}

// Parse decodes a YAML dictionary. Every topic needs a title and a URL, and
// URLs must be unique within the file; rows breaking either rule are skipped
// and reported in Dictionary.Skipped. Only YAML that does not decode is an
// error. Topics without an explicit id get a stable one derived from the URL.
func Parse(data []byte) (Dictionary, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Dictionary{}, fmt.Errorf("parse dictionary: %w", err)
	}

	seen := make(map[string]int, len(doc.Topics))
	dict := Dictionary{Topics: make([]ports.TopicRecord, 0, len(doc.Topics))}
	skip := func(row int, t ports.TopicRecord, err error) {
		dict.Skipped = append(dict.Skipped, &RowError{
			Row:   row,
			Title: strings.TrimSpace(t.Title),
			URL:   t.URL,
			Err:   err,
		})
	}
	for i, t := range doc.Topics {
		row := i + 1
		t.URL = strings.TrimSpace(t.URL)
		if strings.TrimSpace(t.Title) == "" {
			skip(row, t, fmt.Errorf("%w: title is required", ports.ErrInvalidTopic))
			continue
		}
		if t.URL == "" {
			skip(row, t, fmt.Errorf("%w: url is required", ports.ErrInvalidTopic))
			continue
		}
		if prev, ok := seen[t.URL]; ok {
			skip(row, t, fmt.Errorf("%w %s (first at #%d)", ErrDuplicateURL, t.URL, prev))
			continue
		}
		seen[t.URL] = row

		if t.ID == 0 {
			t.ID = URLID(t.URL)
		}
		dict.Topics = append(dict.Topics, t)
	}
	return dict, nil
}

// Load reads and parses a dictionary file.
func Load(path string) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dictionary{}, fmt.Errorf("read dictionary: %w", err)
	}
	dict, err := Parse(data)
	if err != nil {
		return Dictionary{}, fmt.Errorf("%s: %w", path, err)
	}
	return dict, nil
}

// LogSkipped writes one warning per skipped row.
func (d Dictionary) LogSkipped(logger *slog.Logger, source string) {
	for _, e := range d.Skipped {
		logger.Warn("dictionary row skipped",
			"source", source,
			"row", e.Row,
			"title", e.Title,
			"url", e.URL,
			"err", e.Err,
		)
	}
}

// Encode renders records in the same format Parse accepts. IDs are omitted:
// they belong to whichever store the file is imported into.
func Encode(records []ports.TopicRecord) ([]byte, error) {
	doc := document{Topics: make([]ports.TopicRecord, len(records))}
	for i, t := range records {
		t.ID = 0
		doc.Topics[i] = t
	}
	return yaml.Marshal(doc)
}

// URLID derives a positive, stable topic ID from a URL (FNV-1a, 63 bits).
func URLID(url string) int64 {
	h := fnv.New64a()
	h.Write([]byte(url))
	id := int64(h.Sum64() &^ (1 << 63))
	if id == 0 {
		return 1
	}
	return id
}

// ImportResult counts what Import wrote.
type ImportResult struct {
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// Import upserts records into store. Topics the store rejects
// (ports.ErrInvalidTopic) are counted and skipped; any other error aborts.
func Import(ctx context.Context, store ports.TopicStore, records []ports.TopicRecord) (ImportResult, error) {
	var res ImportResult
	for _, t := range records {
		if _, err := store.UpsertTopic(ctx, t); err != nil {
			if errors.Is(err, ports.ErrInvalidTopic) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("import %q: %w", t.Title, err)
		}
		res.Upserted++
	}
	return res, nil
}

// FileProvider serves the dictionary straight from a YAML file, re-reading
// it on every call. Used for matching without a store. Skipped rows are
// logged, the rest are served.
type FileProvider struct {
	Path   string
	Logger *slog.Logger // nil = slog.Default()
}

var _ ports.DictionaryProvider = FileProvider{}

// ListAllTopics loads the file.
func (p FileProvider) ListAllTopics(ctx context.Context) ([]ports.TopicRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dict, err := Load(p.Path)
	if err != nil {
		return nil, err
	}
	dict.LogSkipped(orDefault(p.Logger), p.Path)
	return dict.Topics, nil
}

// BytesProvider serves a fixed, already-encoded dictionary such as the
// embedded seed.
type BytesProvider []byte

// ListAllTopics parses the bytes.
func (p BytesProvider) ListAllTopics(ctx context.Context) ([]ports.TopicRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dict, err := Parse(p)
	if err != nil {
		return nil, err
	}
	dict.LogSkipped(slog.Default(), "embedded")
	return dict.Topics, nil
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
