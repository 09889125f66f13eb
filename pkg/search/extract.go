package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sipeed/picomind/pkg/knowledge"
)

const (
	maxDefinitions = 5
	maxConcepts    = 10
	maxExamples    = 5
	maxFacts       = 5
)

var (
	definitionWords   = []string{"is", "are", "means"}
	definitionPhrases = []string{"refers to", "defined as"}
	examplePhrases    = []string{"example", "for instance", "such as", "including"}
	factPhrases       = []string{"%", "study", "research", "found that", "discovered"}
)

// Extract pulls definitions, key concepts, examples and facts out of raw
// results. Each result contributes one source. Sentences keep their original
// case; matching is case-insensitive.
func Extract(results []Result, topic string) knowledge.Content {
	var (
		defs     = newOrderedSet(maxDefinitions)
		concepts = newOrderedSet(maxConcepts)
		examples = newOrderedSet(maxExamples)
		facts    = newOrderedSet(maxFacts)
		sources  []knowledge.Source
	)

	for _, r := range results {
		for _, sentence := range splitSentences(r.Text) {
			n := utf8.RuneCountInString(sentence)
			lower := strings.ToLower(sentence)

			if n > 20 && n < 300 && isDefinition(lower) {
				defs.add(sentence)
			}
			if n > 20 && containsAny(lower, examplePhrases) {
				examples.add(sentence)
			}
			if n > 30 && containsAny(lower, factPhrases) {
				facts.add(sentence)
			}
		}

		words := strings.Fields(r.Text)
		for i, w := range words {
			if utf8.RuneCountInString(w) <= 3 || !isTitleWord(w) {
				continue
			}
			lo, hi := i-2, i+3
			if lo < 0 {
				lo = 0
			}
			if hi > len(words) {
				hi = len(words)
			}
			window := strings.Join(words[lo:hi], " ")
			if utf8.RuneCountInString(window) > 10 {
				concepts.add(window)
			}
		}

		title := r.Title
		if title == "" {
			title = topic
		}
		kind := r.Source
		if kind == "" {
			kind = "unknown"
		}
		sources = append(sources, knowledge.Source{Title: title, URL: r.URL, Kind: kind})
	}

	return knowledge.Content{
		Definitions: defs.items,
		KeyConcepts: concepts.items,
		Examples:    examples.items,
		Facts:       facts.items,
		Sources:     sources,
	}
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isDefinition matches the copula words as whole words and the phrases anywhere.
func isDefinition(lower string) bool {
	if containsAny(lower, definitionPhrases) {
		return true
	}
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		for _, w := range definitionWords {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// isTitleWord reports whether the letters of w are one capital followed by lowercase.
func isTitleWord(w string) bool {
	seenLetter := false
	for _, r := range w {
		if !unicode.IsLetter(r) {
			continue
		}
		if !seenLetter {
			if !unicode.IsUpper(r) {
				return false
			}
			seenLetter = true
			continue
		}
		if unicode.IsUpper(r) {
			return false
		}
	}
	return seenLetter
}

// orderedSet keeps the first limit distinct items in insertion order.
type orderedSet struct {
	limit int
	seen  map[string]struct{}
	items []string
}

func newOrderedSet(limit int) *orderedSet {
	return &orderedSet{limit: limit, seen: make(map[string]struct{})}
}

func (s *orderedSet) add(item string) {
	if len(s.items) >= s.limit {
		return
	}
	if _, ok := s.seen[item]; ok {
		return
	}
	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
}
