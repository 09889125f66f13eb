package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ExportSnapshot writes every entry, grouped by topic, to a readable markdown file.
// Nothing is written when the store is empty.
func (s *Store) ExportSnapshot(path string) error {
	s.mu.Lock()
	var sb strings.Builder
	count := len(s.entries)
	if count > 0 {
		s.writeSnapshot(&sb)
	}
	s.mu.Unlock()

	if count == 0 {
		return nil
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// writeSnapshot renders the markdown body. Caller holds s.mu.
func (s *Store) writeSnapshot(sb *strings.Builder) {
	sb.WriteString("# Knowledge Snapshot\n")

	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		sb.WriteString(fmt.Sprintf("\n## %s\n", topic))
		for _, id := range s.topics[topic] {
			e, ok := s.entries[id]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("\n### %s\n\n", shortID(e.ID)))
			sb.WriteString(fmt.Sprintf("- Summary: %s\n", e.Summary))
			sb.WriteString(fmt.Sprintf("- Importance: %.2f\n", e.Importance))
			if len(e.Tags) > 0 {
				sb.WriteString(fmt.Sprintf("- Tags: %s\n", strings.Join(e.Tags, ", ")))
			}
			sb.WriteString(fmt.Sprintf("- Accessed: %d times\n", e.AccessCount))
			writeList(sb, "Definitions", e.Content.Definitions)
			writeList(sb, "Key concepts", e.Content.KeyConcepts)
			writeList(sb, "Examples", e.Content.Examples)
			writeList(sb, "Facts", e.Content.Facts)
			if len(e.Content.Sources) > 0 {
				sb.WriteString("\nSources:\n")
				for _, src := range e.Content.Sources {
					if src.URL == "" {
						sb.WriteString(fmt.Sprintf("- %s\n", src.Title))
					} else {
						sb.WriteString(fmt.Sprintf("- [%s](%s)\n", src.Title, src.URL))
					}
				}
			}
		}
	}
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n%s:\n", label))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- %s\n", item))
	}
}
