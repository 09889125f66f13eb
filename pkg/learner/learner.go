// Package learner drives knowledge acquisition: it picks topics, searches for
// them, extracts content and files it in the knowledge store.
package learner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sipeed/picomind/pkg/knowledge"
	"github.com/sipeed/picomind/pkg/logger"
	"github.com/sipeed/picomind/pkg/search"
)

// ErrEmptyTopic is returned by Learn for a blank topic.
var ErrEmptyTopic = errors.New("learner: empty topic")

// Options configures a Learner. Zero values fall back to the built-in topic lists.
type Options struct {
	// Offline, when set with OfflineMode, replaces web search with canned content.
	Offline     *search.OfflineKnowledge
	OfflineMode bool
	// Delay is the minimum spacing between searches.
	Delay          time.Duration
	CoreTopics     []string
	AdvancedTopics []string
}

// Learner owns no state of its own beyond a topic cursor; the store is shared.
type Learner struct {
	store    *knowledge.Store
	provider search.Provider
	offline  *search.OfflineKnowledge
	limiter  *rate.Limiter

	core     []string
	advanced []string

	mu     sync.Mutex
	cursor int
}

func New(store *knowledge.Store, provider search.Provider, opts Options) *Learner {
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	l := &Learner{
		store:    store,
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		core:     opts.CoreTopics,
		advanced: opts.AdvancedTopics,
	}
	if len(l.core) == 0 {
		l.core = DefaultCoreTopics()
	}
	if len(l.advanced) == 0 {
		l.advanced = DefaultAdvancedTopics()
	}
	if opts.OfflineMode {
		l.offline = opts.Offline
		if l.offline == nil {
			l.offline = search.NewOfflineKnowledge()
		}
	}
	return l
}

// Offline reports whether web search is bypassed.
func (l *Learner) Offline() bool {
	return l.offline != nil
}

// Learn acquires and stores knowledge about topic. Search failures and empty
// results still store an entry; only context and serialization errors are returned.
func (l *Learner) Learn(ctx context.Context, topic, sourceKind string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrEmptyTopic
	}

	var content knowledge.Content
	switch {
	case l.offline != nil:
		content = l.offline.Lookup(topic)
	case l.provider != nil:
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
		results, err := l.provider.Search(ctx, topic)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			logger.WarnCF("learner", fmt.Sprintf("Search failed for %s, storing a placeholder", topic), map[string]interface{}{
				"provider": l.provider.Name(),
				"error":    err.Error(),
			})
		} else {
			var redacted int
			content, redacted = search.RedactContent(search.Extract(results, topic))
			if redacted > 0 {
				logger.WarnCF("learner", "Redacted credentials from search results", map[string]interface{}{
					"topic":  topic,
					"fields": redacted,
				})
			}
		}
	default:
		logger.WarnCF("learner", "No search provider configured", map[string]interface{}{"topic": topic})
	}

	id, err := l.store.Store(topic, content, sourceKind)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", topic, err)
	}
	return id, nil
}

// NextTopics picks up to n topics to study. Uncovered core topics come first,
// then uncovered advanced topics. Once everything is covered the configured
// topics are revisited in rotation.
func (l *Learner) NextTopics(n int) []string {
	if n <= 0 {
		return nil
	}

	if picked := l.uncovered(l.core, n); len(picked) > 0 {
		return picked
	}
	if picked := l.uncovered(l.advanced, n); len(picked) > 0 {
		return picked
	}

	all := append(append([]string(nil), l.core...), l.advanced...)
	if n > len(all) {
		n = len(all)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	picked := make([]string, 0, n)
	for i := 0; i < n; i++ {
		picked = append(picked, all[(l.cursor+i)%len(all)])
	}
	l.cursor = (l.cursor + n) % len(all)
	return picked
}

func (l *Learner) uncovered(topics []string, n int) []string {
	var out []string
	for _, t := range topics {
		if len(out) >= n {
			break
		}
		if !l.store.HasTopic(t) {
			out = append(out, t)
		}
	}
	return out
}

func DefaultCoreTopics() []string {
	return []string{
		"personality psychology",
		"human behavior patterns",
		"communication styles",
		"emotional intelligence",
		"social interaction",
		"personality development",
		"behavioral psychology",
		"cognitive patterns",
		"interpersonal skills",
		"personality traits",
	}
}

func DefaultAdvancedTopics() []string {
	return []string{
		"personality disorders",
		"cultural personality differences",
		"personality and career success",
		"personality in relationships",
		"personality change over time",
		"personality assessment methods",
		"personality and mental health",
		"personality in leadership",
		"personality and creativity",
		"personality neuroscience",
	}
}
