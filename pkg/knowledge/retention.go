package knowledge

import (
	"fmt"
	"time"

	"github.com/sipeed/picomind/pkg/logger"
)

// RetentionPolicy decides which entries consolidation evicts. An entry is
// evicted only when all three conditions hold.
type RetentionPolicy struct {
	Window         time.Duration
	LowImportance  float64
	MinAccessCount int
}

func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		Window:         30 * 24 * time.Hour,
		LowImportance:  0.3,
		MinAccessCount: 2,
	}
}

// Evictable applies the policy to e as of now.
func (p RetentionPolicy) Evictable(e *Entry, now time.Time) bool {
	lastAccess := e.LastAccessedAt
	if lastAccess.IsZero() {
		lastAccess = e.CreatedAt
	}
	return lastAccess.Before(now.Add(-p.Window)) &&
		e.Importance < p.LowImportance &&
		e.AccessCount < p.MinAccessCount
}

// Consolidate evicts low-value entries and returns how many were removed.
func (s *Store) Consolidate() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.InfoC("knowledge", "Consolidating memory")

	now := s.now()
	var evict []string
	for _, id := range s.sortedIDs() {
		if s.policy.Evictable(s.entries[id], now) {
			evict = append(evict, id)
		}
	}
	for _, id := range evict {
		s.remove(id)
	}
	s.recorder.EntriesEvicted(len(evict))

	logger.InfoCF("knowledge", fmt.Sprintf("Removed %d low-value knowledge entries", len(evict)), map[string]interface{}{
		"remaining": len(s.entries),
	})
	return len(evict)
}
