package search

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sipeed/picomind/pkg/knowledge"
)

// Seed is the offline content for one topic.
type Seed struct {
	Definitions []string `yaml:"definitions"`
	KeyConcepts []string `yaml:"key_concepts"`
	Examples    []string `yaml:"examples"`
	Facts       []string `yaml:"facts"`
}

// OfflineKnowledge serves canned content when no network search is wanted.
type OfflineKnowledge struct {
	seeds map[string]Seed
	keys  []string
}

var builtinSeeds = map[string]Seed{
	"personality": {
		Definitions: []string{
			"Personality refers to individual differences in characteristic patterns of thinking, feeling and behaving.",
			"Personality psychology is the study of individual differences in behavior, cognition, and emotion.",
		},
		KeyConcepts: []string{"Big Five traits", "personality development", "individual differences", "behavioral patterns"},
		Examples:    []string{"Extraverts tend to be more social and outgoing", "Conscientious people are typically organized and disciplined"},
		Facts: []string{
			"The Big Five personality traits are openness, conscientiousness, extraversion, agreeableness, and neuroticism.",
			"Personality traits are relatively stable across the lifespan but can change gradually.",
		},
	},
	"behavior": {
		Definitions: []string{
			"Human behavior refers to the range of actions and mannerisms made by individuals, families, groups and species.",
			"Behavior is influenced by genetics, environment, thoughts, emotions, and social context.",
		},
		KeyConcepts: []string{"behavioral psychology", "conditioning", "social learning", "motivation"},
		Examples:    []string{"Classical conditioning in learning", "Social modeling in children"},
		Facts: []string{
			"Twin studies attribute roughly half of the variation in many behavioral traits to genetics.",
			"Social learning theory suggests we learn behaviors by observing others.",
		},
	},
	"psychology": {
		Definitions: []string{
			"Psychology is the scientific study of mind and behavior.",
			"Psychology encompasses the study of conscious and unconscious phenomena, feelings and thoughts.",
		},
		KeyConcepts: []string{"cognitive psychology", "behavioral psychology", "social psychology", "developmental psychology"},
		Examples:    []string{"Cognitive behavioral therapy", "Psychological assessment and testing"},
		Facts: []string{
			"Psychology became a scientific discipline in the late 19th century.",
			"There are over 50 different subfields within psychology.",
		},
	},
}

// NewOfflineKnowledge returns the built-in seeds.
func NewOfflineKnowledge() *OfflineKnowledge {
	return newOffline(builtinSeeds)
}

// LoadOfflineKnowledge reads seeds from a YAML file of the form
// "topics: {name: {definitions, key_concepts, examples, facts}}".
// An empty path returns the built-in seeds.
func LoadOfflineKnowledge(path string) (*OfflineKnowledge, error) {
	if path == "" {
		return NewOfflineKnowledge(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var doc struct {
		Topics map[string]Seed `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(doc.Topics) == 0 {
		return nil, fmt.Errorf("seed file %s defines no topics", path)
	}
	return newOffline(doc.Topics), nil
}

func newOffline(seeds map[string]Seed) *OfflineKnowledge {
	o := &OfflineKnowledge{seeds: make(map[string]Seed, len(seeds))}
	for k, v := range seeds {
		k = strings.ToLower(strings.TrimSpace(k))
		o.seeds[k] = v
		o.keys = append(o.keys, k)
	}
	sort.Strings(o.keys)
	return o
}

// Topics returns the seeded topic names, sorted.
func (o *OfflineKnowledge) Topics() []string {
	return append([]string(nil), o.keys...)
}

// Lookup returns content for the first seed whose name contains, or is
// contained in, topic. Unknown topics get a generic placeholder.
func (o *OfflineKnowledge) Lookup(topic string) knowledge.Content {
	lower := strings.ToLower(topic)
	for _, key := range o.keys {
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			seed := o.seeds[key]
			return knowledge.Content{
				Definitions: append([]string(nil), seed.Definitions...),
				KeyConcepts: append([]string(nil), seed.KeyConcepts...),
				Examples:    append([]string(nil), seed.Examples...),
				Facts:       append([]string(nil), seed.Facts...),
				Sources:     []knowledge.Source{{Title: "Offline Knowledge Base", URL: "local", Kind: knowledge.SourceOffline}},
			}
		}
	}

	return knowledge.Content{
		Definitions: []string{fmt.Sprintf("%s is an important concept in psychology and human behavior.", topic)},
		KeyConcepts: []string{topic, "psychology", "human behavior"},
		Examples:    []string{fmt.Sprintf("Examples of %s can be found in everyday life.", topic)},
		Facts:       []string{fmt.Sprintf("%s is studied by researchers to better understand human nature.", topic)},
		Sources:     []knowledge.Source{{Title: "General Knowledge", URL: "local", Kind: knowledge.SourceOffline}},
	}
}
