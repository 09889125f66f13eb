package knowledge

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const baseImportance = 0.5

// domainKeywords maps each domain tag to the keywords that trigger it.
var domainKeywords = map[string][]string{
	"psychology":    {"psychology", "psychological", "mental", "cognitive"},
	"social":        {"social", "interpersonal", "relationship", "communication"},
	"behavioral":    {"behavior", "behavioral", "action", "response"},
	"emotional":     {"emotion", "emotional", "feeling", "mood"},
	"developmental": {"development", "developmental", "growth", "change"},
	"clinical":      {"clinical", "therapy", "treatment", "disorder"},
}

// Importance scores content richness in [0.5, 1.0].
func Importance(c Content) float64 {
	score := baseImportance
	score += float64(len(c.Definitions)) * 0.1
	score += float64(len(c.Sources)) * 0.05
	score += float64(len(c.Facts)) * 0.15
	score += float64(len(c.KeyConcepts)) * 0.08
	return math.Min(1.0, score)
}

// Tags infers category labels from the content shape and domain vocabulary.
// The result is sorted and free of duplicates.
func Tags(c Content) []string {
	set := make(map[string]struct{})
	if len(c.Definitions) > 0 {
		set["definition"] = struct{}{}
	}
	if len(c.Examples) > 0 {
		set["examples"] = struct{}{}
	}
	if len(c.Facts) > 0 {
		set["research"] = struct{}{}
	}
	if len(c.KeyConcepts) > 0 {
		set["concepts"] = struct{}{}
	}

	text := contentText(c)
	for tag, keywords := range domainKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				set[tag] = struct{}{}
				break
			}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// QualityLabel grades content for the episodic log.
func QualityLabel(c Content) string {
	score := 0
	if len(c.Definitions) > 0 {
		score += 2
	}
	score += len(c.Sources)
	if len(c.Facts) > 0 {
		score += 2
	}
	if len(c.Examples) > 0 {
		score++
	}

	switch {
	case score >= 8:
		return QualityExcellent
	case score >= 5:
		return QualityGood
	case score >= 3:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Summary describes the content in one line.
func Summary(c Content) string {
	var parts []string
	if n := len(c.Definitions); n > 0 {
		parts = append(parts, fmt.Sprintf("Definitions: %d found", n))
	}
	if n := len(c.KeyConcepts); n > 0 {
		parts = append(parts, fmt.Sprintf("Key concepts: %d identified", n))
	}
	if n := len(c.Facts); n > 0 {
		parts = append(parts, fmt.Sprintf("Research findings: %d facts", n))
	}
	if n := len(c.Sources); n > 0 {
		parts = append(parts, fmt.Sprintf("Sources: %d references", n))
	}
	if len(parts) == 0 {
		return "General information stored"
	}
	return strings.Join(parts, "; ")
}

// contentText flattens content into lowercase text for keyword matching.
func contentText(c Content) string {
	var sb strings.Builder
	for _, list := range [][]string{c.Definitions, c.KeyConcepts, c.Examples, c.Facts} {
		for _, s := range list {
			sb.WriteString(s)
			sb.WriteByte(' ')
		}
	}
	for _, s := range c.Sources {
		sb.WriteString(s.Title)
		sb.WriteByte(' ')
	}
	return strings.ToLower(sb.String())
}
