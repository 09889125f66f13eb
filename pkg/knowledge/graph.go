package knowledge

import (
	"sort"
	"strings"
)

// connectNew links e to every entry already filed under its topic and to every
// entry whose key concepts contain one of e's key concepts. The scan covers the
// whole corpus on each insert, which is fine for stores of a few thousand entries.
// Caller holds s.mu; e is not yet in s.entries.
func (s *Store) connectNew(e *Entry) {
	for _, other := range s.topics[e.Topic] {
		if other == e.ID {
			continue
		}
		if _, ok := s.entries[other]; ok {
			s.link(e.ID, other)
		}
	}

	concepts := loweredConcepts(e.Content.KeyConcepts)
	if len(concepts) == 0 {
		return
	}
	for id, other := range s.entries {
		if id == e.ID {
			continue
		}
		if sharesConcept(concepts, other.Content.KeyConcepts) {
			s.link(e.ID, id)
		}
	}
}

// sharesConcept reports whether any of the existing concepts contains one of
// the (already lowercased) new concepts.
func sharesConcept(newConcepts []string, existing []string) bool {
	for _, ec := range existing {
		lower := strings.ToLower(ec)
		for _, c := range newConcepts {
			if strings.Contains(lower, c) {
				return true
			}
		}
	}
	return false
}

func loweredConcepts(concepts []string) []string {
	out := make([]string, 0, len(concepts))
	for _, c := range concepts {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// link records an undirected edge. Caller holds s.mu.
func (s *Store) link(a, b string) {
	if a == b {
		return
	}
	if s.links[a] == nil {
		s.links[a] = make(map[string]struct{})
	}
	if s.links[b] == nil {
		s.links[b] = make(map[string]struct{})
	}
	s.links[a][b] = struct{}{}
	s.links[b][a] = struct{}{}
}

// unlink drops id from the graph, including every neighbour's back-edge.
// Caller holds s.mu.
func (s *Store) unlink(id string) {
	for neighbor := range s.links[id] {
		if set := s.links[neighbor]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(s.links, neighbor)
			}
		}
	}
	delete(s.links, id)
}

// Neighbors returns the ids directly connected to id, sorted.
func (s *Store) Neighbors(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.neighborIDs(id)
}

func (s *Store) neighborIDs(id string) []string {
	set := s.links[id]
	ids := make([]string, 0, len(set))
	for n := range set {
		if _, ok := s.entries[n]; ok {
			ids = append(ids, n)
		}
	}
	sort.Strings(ids)
	return ids
}

// Connected walks the connection graph breadth-first from id, up to depth hops.
// The start entry is excluded and no entry appears twice.
func (s *Store) Connected(id string, depth int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok || depth < 1 {
		return nil
	}

	type step struct {
		id    string
		depth int
	}
	visited := map[string]bool{id: true}
	queue := []step{{id: id, depth: 0}}
	var result []Entry

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}
		for _, n := range s.neighborIDs(current.id) {
			if visited[n] {
				continue
			}
			visited[n] = true
			result = append(result, s.entries[n].clone())
			queue = append(queue, step{id: n, depth: current.depth + 1})
		}
	}
	return result
}

// connectionCount is the number of undirected edges. Caller holds s.mu.
func (s *Store) connectionCount() int {
	total := 0
	for _, set := range s.links {
		total += len(set)
	}
	return total / 2
}
