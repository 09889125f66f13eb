package knowledge

import "time"

// Source kinds describing how an entry was acquired.
const (
	SourceWebSearch       = "web_search"
	SourceUserQuestion    = "user_question"
	SourceFocusedLearning = "focused_learning"
	SourceOffline         = "offline"
)

// Quality labels recorded on episodes.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

// Source is a citation for where a piece of content came from.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Kind  string `json:"source_kind"`
}

// Content is the structured bag of extracted knowledge. Any list may be empty.
type Content struct {
	Definitions []string `json:"definitions,omitempty"`
	KeyConcepts []string `json:"key_concepts,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Facts       []string `json:"notable_facts,omitempty"`
	Sources     []Source `json:"sources,omitempty"`
}

// IsEmpty reports whether every list is empty.
func (c Content) IsEmpty() bool {
	return len(c.Definitions) == 0 && len(c.KeyConcepts) == 0 &&
		len(c.Examples) == 0 && len(c.Facts) == 0 && len(c.Sources) == 0
}

func (c Content) clone() Content {
	return Content{
		Definitions: cloneStrings(c.Definitions),
		KeyConcepts: cloneStrings(c.KeyConcepts),
		Examples:    cloneStrings(c.Examples),
		Facts:       cloneStrings(c.Facts),
		Sources:     append([]Source(nil), c.Sources...),
	}
}

// Entry is one stored unit of acquired knowledge about a topic.
type Entry struct {
	ID             string    `json:"id"`
	Topic          string    `json:"topic"`
	Content        Content   `json:"content"`
	SourceKind     string    `json:"source_kind"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Importance     float64   `json:"importance"`
	Tags           []string  `json:"tags"`
	AccessCount    int       `json:"access_count"`
}

// HasTag checks if the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (e *Entry) clone() Entry {
	c := *e
	c.Content = e.Content.clone()
	c.Tags = cloneStrings(e.Tags)
	return c
}

// Episode is a lightweight record of one storage event.
type Episode struct {
	Topic      string    `json:"topic"`
	SourceKind string    `json:"source_kind"`
	Quality    string    `json:"quality_label"`
	Timestamp  time.Time `json:"timestamp"`
}

// AccessSummary identifies a frequently accessed entry in Stats.
type AccessSummary struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	AccessCount int    `json:"access_count"`
}

// Stats is a point-in-time snapshot of the store.
type Stats struct {
	Entries           int             `json:"total_knowledge_entries"`
	Topics            int             `json:"total_topics"`
	Connections       int             `json:"total_connections"`
	AverageImportance float64         `json:"average_importance"`
	MostAccessed      []AccessSummary `json:"most_accessed"`
	Episodes          int             `json:"episodic_memories"`
	Efficiency        float64         `json:"memory_efficiency"`
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
