package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sipeed/picomind/pkg/logger"
	"github.com/sipeed/picomind/pkg/storage"
)

// ErrCorruptDocument is returned by Load when the persisted document cannot be decoded.
var ErrCorruptDocument = errors.New("knowledge: corrupt document")

// document is the on-disk shape of the whole store.
type document struct {
	Entries     map[string]*Entry   `json:"entries"`
	TopicIndex  map[string][]string `json:"topic_index"`
	Connections map[string][]string `json:"connections"`
	EpisodicLog []Episode           `json:"episodic_log"`
}

// Save writes the full store state to the medium under the store key.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.snapshotDocument(), "", "  ")
	key := s.key
	s.mu.Unlock()
	if err != nil {
		s.recorder.SaveFailed()
		return fmt.Errorf("knowledge: encode document: %w", err)
	}

	if err := s.medium.Write(key, data); err != nil {
		s.recorder.SaveFailed()
		logger.ErrorCF("knowledge", "Failed to save knowledge base", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return fmt.Errorf("knowledge: save %s: %w", key, err)
	}
	return nil
}

// snapshotDocument builds the persisted form. Caller holds s.mu.
func (s *Store) snapshotDocument() document {
	doc := document{
		Entries:     make(map[string]*Entry, len(s.entries)),
		TopicIndex:  make(map[string][]string, len(s.topics)),
		Connections: make(map[string][]string, len(s.links)),
		EpisodicLog: append([]Episode{}, s.episodes...),
	}
	for id, e := range s.entries {
		c := e.clone()
		doc.Entries[id] = &c
	}
	for topic, ids := range s.topics {
		doc.TopicIndex[topic] = append([]string(nil), ids...)
	}
	for id := range s.links {
		if neighbors := s.neighborIDs(id); len(neighbors) > 0 {
			doc.Connections[id] = neighbors
		}
	}
	return doc
}

// Load replaces the in-memory state with the persisted document. A missing
// document yields an empty store and no error. A corrupt one yields an empty
// store and an error wrapping ErrCorruptDocument.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()

	data, err := s.medium.Read(s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("knowledge: load %s: %w", s.key, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	s.apply(doc)
	return nil
}

// apply installs doc and repairs it so the indexes agree with the entries:
// ids come from the map key, importance is clamped to [0, 1], and each entry
// is indexed under its own topic exactly once. Caller holds s.mu.
func (s *Store) apply(doc document) {
	dropped := 0

	for id, e := range doc.Entries {
		if e == nil {
			dropped++
			continue
		}
		if e.ID != id {
			if e.ID != "" {
				dropped++
			}
			e.ID = id
		}
		if imp := math.Max(0, math.Min(1, e.Importance)); imp != e.Importance {
			e.Importance = imp
			dropped++
		}
		s.entries[id] = e
	}

	topics := make([]string, 0, len(doc.TopicIndex))
	for t := range doc.TopicIndex {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	indexed := make(map[string]bool, len(s.entries))
	for _, topic := range topics {
		for _, id := range doc.TopicIndex[topic] {
			e, ok := s.entries[id]
			if !ok || e.Topic != topic || indexed[id] {
				dropped++
				continue
			}
			indexed[id] = true
			s.topics[topic] = append(s.topics[topic], id)
		}
	}
	for _, id := range s.sortedIDs() {
		if !indexed[id] {
			e := s.entries[id]
			s.topics[e.Topic] = append(s.topics[e.Topic], id)
			dropped++
		}
	}

	for id, neighbors := range doc.Connections {
		if _, ok := s.entries[id]; !ok {
			dropped++
			continue
		}
		for _, n := range neighbors {
			if _, ok := s.entries[n]; !ok || n == id {
				dropped++
				continue
			}
			s.link(id, n)
		}
	}

	s.episodes = doc.EpisodicLog
	if over := len(s.episodes) - s.episodeCap; over > 0 {
		s.episodes = append([]Episode(nil), s.episodes[over:]...)
	}

	if dropped > 0 {
		logger.WarnCF("knowledge", "Repaired knowledge document on load", map[string]interface{}{
			"dropped": dropped,
		})
	}
	logger.InfoCF("knowledge", "Loaded knowledge base", map[string]interface{}{
		"entries":  len(s.entries),
		"topics":   len(s.topics),
		"episodes": len(s.episodes),
	})
}
