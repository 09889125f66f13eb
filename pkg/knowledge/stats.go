package knowledge

import (
	"math"
	"sort"
)

// Weights for the memory efficiency score. Each factor contributes positively.
const (
	densityWeight     = 0.3
	accessWeight      = 0.4
	consistencyWeight = 0.3
)

// Statistics returns counts and derived quality measures for the store.
func (s *Store) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Entries:     len(s.entries),
		Connections: s.connectionCount(),
		Episodes:    len(s.episodes),
	}
	for _, ids := range s.topics {
		if len(ids) > 0 {
			st.Topics++
		}
	}
	if len(s.entries) == 0 {
		return st
	}

	var sumImportance float64
	ranked := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		sumImportance += e.Importance
		ranked = append(ranked, e)
	}
	st.AverageImportance = sumImportance / float64(len(s.entries))

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.AccessCount != b.AccessCount {
			return a.AccessCount > b.AccessCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	for i := 0; i < len(ranked) && i < mostAccessedListLimit; i++ {
		st.MostAccessed = append(st.MostAccessed, AccessSummary{
			ID:          ranked[i].ID,
			Topic:       ranked[i].Topic,
			AccessCount: ranked[i].AccessCount,
		})
	}

	st.Efficiency = s.efficiency(st.AverageImportance)
	return st
}

// efficiency combines connection density, mean access frequency and the
// consistency (1 - variance) of importance scores, clamped to [0, 1].
// Caller holds s.mu and guarantees at least one entry.
func (s *Store) efficiency(meanImportance float64) float64 {
	n := float64(len(s.entries))

	adjacency := 0
	for _, set := range s.links {
		adjacency += len(set)
	}
	density := float64(adjacency) / n

	var sumAccess, sqDiff float64
	for _, e := range s.entries {
		sumAccess += float64(e.AccessCount)
		d := e.Importance - meanImportance
		sqDiff += d * d
	}
	meanAccess := sumAccess / n
	variance := sqDiff / n

	score := density*densityWeight + meanAccess*accessWeight + (1-variance)*consistencyWeight
	return math.Max(0, math.Min(1, score))
}
