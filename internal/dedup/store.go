// Package dedup remembers which feed items and comments have already been
// handled, so restarts never react to the same thing twice.
package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	feedsFile    = "processed_feeds.json"
	commentsFile = "replied_comments.json"
)

// DefaultCapacity bounds each ledger; the oldest entries are evicted first.
const DefaultCapacity = 200

// entry is one remembered key with its stored value. Feeds map an item key
// to its timestamp, comments map a comment key to the reply text; both are
// opaque to the store.
type entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ledger is a bounded insertion-ordered map. Persistence is a JSON array
// since insertion order decides eviction and JSON objects don't keep it.
type ledger struct {
	path    string
	cap     int
	order   []string
	entries map[string]string
}

func openLedger(path string, capacity int) (*ledger, error) {
	l := &ledger{
		path:    path,
		cap:     capacity,
		entries: make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var stored []entry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, e := range stored {
		if _, seen := l.entries[e.Key]; seen {
			continue
		}
		l.order = append(l.order, e.Key)
		l.entries[e.Key] = e.Value
	}
	l.evict()
	return l, nil
}

func (l *ledger) has(key string) bool {
	_, ok := l.entries[key]
	return ok
}

func (l *ledger) put(key, value string) error {
	if _, seen := l.entries[key]; !seen {
		l.order = append(l.order, key)
	}
	l.entries[key] = value
	l.evict()
	return l.flush()
}

// evict drops the oldest entries until the ledger fits its capacity.
func (l *ledger) evict() {
	for len(l.order) > l.cap {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
	}
}

func (l *ledger) flush() error {
	stored := make([]entry, 0, len(l.order))
	for _, key := range l.order {
		stored = append(stored, entry{Key: key, Value: l.entries[key]})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", l.path, err)
	}
	if err := os.WriteFile(l.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", l.path, err)
	}
	return nil
}

// Store tracks processed feed items and replied comments in two bounded
// ledgers, each persisted to its own file under the data directory.
type Store struct {
	mu       sync.Mutex
	feeds    *ledger
	comments *ledger
}

// Open loads (or creates) the dedup ledgers under dir. A capacity of zero
// means DefaultCapacity.
func Open(dir string, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	feeds, err := openLedger(filepath.Join(dir, feedsFile), capacity)
	if err != nil {
		return nil, err
	}
	comments, err := openLedger(filepath.Join(dir, commentsFile), capacity)
	if err != nil {
		return nil, err
	}
	return &Store{feeds: feeds, comments: comments}, nil
}

// IsProcessed reports whether the feed item was already handled.
// The key is "{authorQQ}_{itemID}".
func (s *Store) IsProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds.has(key)
}

// MarkProcessed records a handled feed item and persists immediately, so a
// crash between two items never replays the first.
func (s *Store) MarkProcessed(key, timestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeds.put(key, timestamp)
}

// IsCommentReplied reports whether the comment was already answered.
// The key is "{itemID}_{commentID}".
func (s *Store) IsCommentReplied(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments.has(key)
}

// MarkCommentReplied records an answered comment along with the reply text
// and persists immediately.
func (s *Store) MarkCommentReplied(key, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comments.put(key, reply)
}
