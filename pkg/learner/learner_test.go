package learner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sipeed/picomind/pkg/knowledge"
	"github.com/sipeed/picomind/pkg/search"
	"github.com/sipeed/picomind/pkg/storage"
)

type stubProvider struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	queries []string
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(ctx context.Context, query string) ([]search.Result, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	return p.results, p.err
}

func openTestStore(t *testing.T) (*knowledge.Store, storage.Medium) {
	t.Helper()
	medium := storage.NewFileMedium(t.TempDir())
	return knowledge.New(medium), medium
}

func TestLearnStoresExtractedContent(t *testing.T) {
	store, _ := openTestStore(t)
	p := &stubProvider{results: []search.Result{{
		Title:  "Empathy",
		URL:    "https://example.org/empathy",
		Source: "wikipedia",
		Text:   "Empathy is the capacity to understand what another person is experiencing.",
	}}}
	l := New(store, p, Options{})

	id, err := l.Learn(context.Background(), "empathy", knowledge.SourceUserQuestion)
	if err != nil {
		t.Fatal(err)
	}
	e, ok := store.Get(id)
	if !ok {
		t.Fatal("expected stored entry")
	}
	if len(e.Content.Definitions) != 1 || len(e.Content.Sources) != 1 {
		t.Fatalf("expected extracted definition and source, got %+v", e.Content)
	}
	if e.SourceKind != knowledge.SourceUserQuestion {
		t.Fatalf("expected source kind to pass through, got %q", e.SourceKind)
	}
}

func TestLearnRedactsCredentials(t *testing.T) {
	store, _ := openTestStore(t)
	p := &stubProvider{results: []search.Result{{
		Title: "Empathy",
		Text:  "Empathy is shared by holders of sk-abcdefghij1234567890abcdef keys",
	}}}
	l := New(store, p, Options{})

	id, err := l.Learn(context.Background(), "empathy", knowledge.SourceWebSearch)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := store.Get(id)
	if len(e.Content.Definitions) != 1 {
		t.Fatalf("expected one definition, got %+v", e.Content)
	}
	if strings.Contains(e.Content.Definitions[0], "sk-abcdefghij") || !strings.Contains(e.Content.Definitions[0], "[REDACTED_API_KEY]") {
		t.Fatalf("credential not redacted: %q", e.Content.Definitions[0])
	}
}

func TestLearnStoresPlaceholderOnSearchFailure(t *testing.T) {
	store, _ := openTestStore(t)
	l := New(store, &stubProvider{err: errors.New("network down")}, Options{})

	id, err := l.Learn(context.Background(), "grit", knowledge.SourceWebSearch)
	if err != nil {
		t.Fatalf("search failures must not propagate, got %v", err)
	}
	e, _ := store.Get(id)
	if !e.Content.IsEmpty() || e.Importance != 0.5 {
		t.Fatalf("expected floor-importance placeholder, got %+v", e)
	}
}

func TestLearnEmptyTopic(t *testing.T) {
	store, _ := openTestStore(t)
	l := New(store, &stubProvider{}, Options{})
	if _, err := l.Learn(context.Background(), "  ", ""); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestLearnCancelledContext(t *testing.T) {
	store, _ := openTestStore(t)
	l := New(store, &stubProvider{err: context.Canceled}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Learn(ctx, "stoicism", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("nothing should be stored for a cancelled learn")
	}
}

func TestLearnOffline(t *testing.T) {
	store, _ := openTestStore(t)
	p := &stubProvider{}
	l := New(store, p, Options{OfflineMode: true})

	id, err := l.Learn(context.Background(), "personality", knowledge.SourceFocusedLearning)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.queries) != 0 {
		t.Fatal("offline mode must not hit the provider")
	}
	e, _ := store.Get(id)
	if len(e.Content.Definitions) != 2 || e.Content.Sources[0].Kind != knowledge.SourceOffline {
		t.Fatalf("expected offline seed content, got %+v", e.Content)
	}
}

func TestNextTopicsCoreThenAdvanced(t *testing.T) {
	store, _ := openTestStore(t)
	l := New(store, nil, Options{
		OfflineMode:    true,
		CoreTopics:     []string{"c1", "c2"},
		AdvancedTopics: []string{"a1", "a2", "a3"},
	})

	if got := l.NextTopics(5); len(got) != 2 || got[0] != "c1" {
		t.Fatalf("expected core topics first, got %v", got)
	}
	l.Learn(context.Background(), "c1", "")
	if got := l.NextTopics(5); len(got) != 1 || got[0] != "c2" {
		t.Fatalf("expected remaining core topic, got %v", got)
	}
	l.Learn(context.Background(), "c2", "")
	if got := l.NextTopics(2); len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Fatalf("expected advanced topics once core is covered, got %v", got)
	}

	for _, topic := range []string{"a1", "a2", "a3"} {
		l.Learn(context.Background(), topic, "")
	}
	first := l.NextTopics(3)
	second := l.NextTopics(3)
	if len(first) != 3 || len(second) != 3 || first[0] == second[0] {
		t.Fatalf("expected rotation through covered topics, got %v then %v", first, second)
	}
	if got := l.NextTopics(0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
}

func TestRunSession(t *testing.T) {
	store, medium := openTestStore(t)
	l := New(store, nil, Options{
		OfflineMode: true,
		CoreTopics:  []string{"personality", "behavior", "psychology", "emotion"},
	})

	report, err := l.RunSession(context.Background(), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if report.Cycles != 2 || len(report.IDs) != 4 {
		t.Fatalf("expected 2 cycles and 4 entries, got %+v", report)
	}
	if report.SaveErr != nil {
		t.Fatalf("unexpected save error %v", report.SaveErr)
	}
	for _, want := range []string{"personality", "behavior", "psychology", "emotion"} {
		if !store.HasTopic(want) {
			t.Fatalf("expected %q to be covered", want)
		}
	}

	reloaded := knowledge.New(medium)
	if reloaded.Len() != 4 {
		t.Fatalf("expected session to be saved, reloaded %d entries", reloaded.Len())
	}
	e, _ := reloaded.Get(report.IDs[0])
	if e.SourceKind != knowledge.SourceFocusedLearning {
		t.Fatalf("expected focused_learning source, got %q", e.SourceKind)
	}
}

func TestRunSessionCancelledStillSaves(t *testing.T) {
	store, medium := openTestStore(t)
	l := New(store, &stubProvider{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := l.RunSession(ctx, 3, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.SaveErr != nil {
		t.Fatalf("unexpected save error %v", report.SaveErr)
	}
	if _, err := medium.Read(knowledge.DefaultKey); err != nil {
		t.Fatalf("expected a saved document after cancellation: %v", err)
	}
}
