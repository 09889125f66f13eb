// Package knowledge implements the knowledge store: entries filed by topic,
// cross-referenced by shared topic or key concept, pruned by a conjunctive
// retention policy and persisted as one JSON document.
package knowledge

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sipeed/picomind/pkg/logger"
	"github.com/sipeed/picomind/pkg/storage"
)

const (
	// DefaultKey is the persistence key the store document lives under.
	DefaultKey = "knowledge_base"

	DefaultEpisodeCap     = 1000
	DefaultRetrieveLimit  = 5
	mostAccessedListLimit = 5
)

// Recorder receives store events, typically for metrics.
type Recorder interface {
	EntryStored()
	EntriesRetrieved(n int)
	EntriesEvicted(n int)
	SaveFailed()
}

type nopRecorder struct{}

func (nopRecorder) EntryStored()         {}
func (nopRecorder) EntriesRetrieved(int) {}
func (nopRecorder) EntriesEvicted(int)   {}
func (nopRecorder) SaveFailed()          {}

// Store owns all knowledge entries and their indexes. All methods are safe
// for concurrent use; every operation runs under one mutex.
type Store struct {
	mu sync.Mutex

	medium     storage.Medium
	key        string
	policy     RetentionPolicy
	episodeCap int
	now        func() time.Time
	recorder   Recorder

	entries  map[string]*Entry
	topics   map[string][]string
	links    map[string]map[string]struct{}
	episodes []Episode
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the persistence key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithPolicy sets the retention policy Consolidate applies.
func WithPolicy(p RetentionPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithEpisodeCap bounds the episodic log. Non-positive values keep the default.
func WithEpisodeCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.episodeCap = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder receives store events. A nil recorder is ignored.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// New creates a store backed by medium and loads any existing document.
// A missing or unreadable document leaves the store empty; New never fails.
func New(medium storage.Medium, opts ...Option) *Store {
	s := &Store{
		medium:     medium,
		key:        DefaultKey,
		policy:     DefaultRetentionPolicy(),
		episodeCap: DefaultEpisodeCap,
		now:        time.Now,
		recorder:   nopRecorder{},
	}
	s.reset()
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Load(); err != nil {
		logger.WarnCF("knowledge", "Could not load knowledge base, starting empty", map[string]interface{}{
			"key":   s.key,
			"error": err.Error(),
		})
	}
	return s
}

func (s *Store) reset() {
	s.entries = make(map[string]*Entry)
	s.topics = make(map[string][]string)
	s.links = make(map[string]map[string]struct{})
	s.episodes = nil
}

// Store files new knowledge under topic and returns its id. The only error is
// a failure to serialize content for the id hash.
func (s *Store) Store(topic string, content Content, sourceKind string) (string, error) {
	if sourceKind == "" {
		sourceKind = SourceWebSearch
	}
	content = content.clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id, err := s.newID(topic, content, now)
	if err != nil {
		return "", err
	}

	entry := &Entry{
		ID:             id,
		Topic:          topic,
		Content:        content,
		SourceKind:     sourceKind,
		Summary:        Summary(content),
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     Importance(content),
		Tags:           Tags(content),
	}

	// Connections are discovered against the corpus as it was before this insert.
	s.connectNew(entry)

	s.entries[id] = entry
	s.topics[topic] = append(s.topics[topic], id)
	s.appendEpisode(Episode{
		Topic:      topic,
		SourceKind: sourceKind,
		Quality:    QualityLabel(content),
		Timestamp:  now,
	})
	s.recorder.EntryStored()

	logger.InfoCF("knowledge", fmt.Sprintf("Stored knowledge about %s", topic), map[string]interface{}{
		"id":          shortID(id),
		"importance":  entry.Importance,
		"connections": len(s.links[id]),
	})
	return id, nil
}

// newID derives the id from a content hash. A hash already in use is retried
// with a salt so an existing entry is never overwritten.
func (s *Store) newID(topic string, content Content, at time.Time) (string, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("knowledge: serialize content: %w", err)
	}
	for salt := 0; ; salt++ {
		seed := fmt.Sprintf("%s_%s_%d", topic, raw, at.UnixNano())
		if salt > 0 {
			seed = fmt.Sprintf("%s_%d", seed, salt)
		}
		sum := md5.Sum([]byte(seed))
		id := hex.EncodeToString(sum[:])
		if _, taken := s.entries[id]; !taken {
			return id, nil
		}
	}
}

func (s *Store) appendEpisode(ep Episode) {
	s.episodes = append(s.episodes, ep)
	if over := len(s.episodes) - s.episodeCap; over > 0 {
		s.episodes = append([]Episode(nil), s.episodes[over:]...)
	}
}

// Retrieve returns entries for a topic or query, best first. Matching entries
// have their access stats bumped, so retrieval is a write.
func (s *Store) Retrieve(query string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	matched := make(map[string]bool)
	var found []*Entry

	for _, id := range s.topics[query] {
		e, ok := s.entries[id]
		if !ok || matched[id] {
			continue
		}
		matched[id] = true
		found = append(found, e)
	}

	q := strings.ToLower(query)
	for _, id := range s.sortedIDs() {
		if matched[id] {
			continue
		}
		e := s.entries[id]
		if strings.Contains(strings.ToLower(e.Topic), q) || tagContains(e.Tags, q) {
			matched[id] = true
			found = append(found, e)
		}
	}

	for _, e := range found {
		e.AccessCount++
		e.LastAccessedAt = now
	}
	s.recorder.EntriesRetrieved(len(found))

	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if a.AccessCount != b.AccessCount {
			return a.AccessCount > b.AccessCount
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if len(found) > limit {
		found = found[:limit]
	}
	result := make([]Entry, len(found))
	for i, e := range found {
		result[i] = e.clone()
	}
	return result
}

// Get returns a copy of the entry without touching access stats.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Topics returns every topic with at least one entry, sorted.
func (s *Store) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.topics))
	for t, ids := range s.topics {
		if len(ids) > 0 {
			topics = append(topics, t)
		}
	}
	sort.Strings(topics)
	return topics
}

// HasTopic reports whether anything is filed under topic.
func (s *Store) HasTopic(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.topics[topic]) > 0
}

// Episodes returns a copy of the episodic log, oldest first.
func (s *Store) Episodes() []Episode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Episode(nil), s.episodes...)
}

// Forget removes one entry and every reference to it.
func (s *Store) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	s.remove(id)
	return true
}

// remove deletes id from the entry map, the topic index and the graph.
// Caller holds s.mu.
func (s *Store) remove(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)

	ids := s.topics[e.Topic]
	kept := ids[:0]
	for _, other := range ids {
		if other != id {
			kept = append(kept, other)
		}
	}
	if len(kept) == 0 {
		delete(s.topics, e.Topic)
	} else {
		s.topics[e.Topic] = kept
	}

	s.unlink(id)
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func tagContains(tags []string, q string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
