// Package bbolt implements ports.TopicStore using bbolt (embedded B+ tree).
// The "topics" bucket maps a big-endian uint64 ID to the JSON-serialized
// record; "topic_urls" maps URL to ID so upserts keep IDs stable. Writes are
// transactional: a crash mid-write cannot corrupt previously committed data.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/corey/cognitia/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketTopics = []byte("topics")
	bucketURLs   = []byte("topic_urls")
)

// Store implements ports.TopicStore backed by bbolt.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ ports.TopicStore = (*Store)(nil)

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTopics); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketURLs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init buckets: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// itob encodes an ID as an 8-byte big-endian key so cursor order is ID order.
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// UpsertTopic inserts t, or updates the topic that already owns t.URL.
func (s *Store) UpsertTopic(ctx context.Context, t ports.TopicRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, err := t.Normalize()
	if err != nil {
		return 0, err
	}
	t.UpdatedAt = s.now().UTC()

	var id int64
	err = s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTopics)
		ub := tx.Bucket(bucketURLs)

		if v := ub.Get([]byte(t.URL)); v != nil {
			id = btoi(v)
		} else {
			seq, err := tb.NextSequence()
			if err != nil {
				return err
			}
			id = int64(seq)
			if err := ub.Put([]byte(t.URL), itob(id)); err != nil {
				return err
			}
		}

		t.ID = id
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal topic: %w", err)
		}
		return tb.Put(itob(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert topic %q: %w", t.Title, err)
	}
	return id, nil
}

// GetTopic returns ports.ErrTopicNotFound if no topic has this ID.
func (s *Store) GetTopic(ctx context.Context, id int64) (ports.TopicRecord, error) {
	if err := ctx.Err(); err != nil {
		return ports.TopicRecord{}, err
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := tx.Bucket(bucketTopics).Get(itob(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return ports.TopicRecord{}, err
	}
	if data == nil {
		return ports.TopicRecord{}, fmt.Errorf("topic %d: %w", id, ports.ErrTopicNotFound)
	}
	return decodeTopic(data)
}

// GetTopicByTitle scans for an exact title match. The lowest ID wins when
// several topics share a title.
func (s *Store) GetTopicByTitle(ctx context.Context, title string) (ports.TopicRecord, error) {
	topics, err := s.ListAllTopics(ctx)
	if err != nil {
		return ports.TopicRecord{}, err
	}
	var found *ports.TopicRecord
	for i := range topics {
		if topics[i].Title != title {
			continue
		}
		if found == nil || topics[i].ID < found.ID {
			found = &topics[i]
		}
	}
	if found == nil {
		return ports.TopicRecord{}, fmt.Errorf("topic %q: %w", title, ports.ErrTopicNotFound)
	}
	return *found, nil
}

// DeleteTopic removes a topic and its URL index entry.
// Idempotent: deleting a nonexistent topic is not an error.
func (s *Store) DeleteTopic(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTopics)
		v := tb.Get(itob(id))
		if v == nil {
			return nil // idempotent
		}
		t, err := decodeTopic(v)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketURLs).Delete([]byte(t.URL)); err != nil {
			return err
		}
		return tb.Delete(itob(id))
	})
}

// CountTopics returns the number of stored topics.
func (s *Store) CountTopics(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketTopics).Stats().KeyN
		return nil
	})
	return n, err
}

// ListAllTopics returns every topic ordered by title, then ID.
func (s *Store) ListAllTopics(ctx context.Context) ([]ports.TopicRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var topics []ports.TopicRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTopics).ForEach(func(_, v []byte) error {
			// json.Unmarshal copies, so v need not outlive the tx
			t, err := decodeTopic(v)
			if err != nil {
				return err
			}
			topics = append(topics, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Title != topics[j].Title {
			return topics[i].Title < topics[j].Title
		}
		return topics[i].ID < topics[j].ID
	})
	return topics, nil
}

func decodeTopic(data []byte) (ports.TopicRecord, error) {
	var t ports.TopicRecord
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("unmarshal topic: %w", err)
	}
	return t, nil
}
