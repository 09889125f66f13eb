package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sipeed/picomind/pkg/knowledge"
	"github.com/sipeed/picomind/pkg/search"
	"github.com/sipeed/picomind/pkg/storage"
)

var (
	_ knowledge.Recorder = (*Collector)(nil)
	_ search.Observer    = (*Collector)(nil)
)

func TestRecorderCounters(t *testing.T) {
	c := NewCollector()

	c.EntryStored()
	c.EntryStored()
	c.EntriesRetrieved(3)
	c.EntriesRetrieved(0)
	c.EntriesEvicted(2)
	c.SaveFailed()

	if v := testutil.ToFloat64(c.Stored); v != 2 {
		t.Fatalf("expected 2 stored, got %v", v)
	}
	if v := testutil.ToFloat64(c.Retrieved); v != 3 {
		t.Fatalf("expected 3 retrieved, got %v", v)
	}
	if v := testutil.ToFloat64(c.Evicted); v != 2 {
		t.Fatalf("expected 2 evicted, got %v", v)
	}
	if v := testutil.ToFloat64(c.SaveFailures); v != 1 {
		t.Fatalf("expected 1 save failure, got %v", v)
	}
}

func TestSearchCompleted(t *testing.T) {
	c := NewCollector()
	c.SearchCompleted("wikipedia", nil)
	c.SearchCompleted("wikipedia", errors.New("timeout"))
	c.SearchCompleted("duckduckgo", nil)

	if v := testutil.ToFloat64(c.SearchCalls.WithLabelValues("wikipedia", "success")); v != 1 {
		t.Fatalf("expected 1 wikipedia success, got %v", v)
	}
	if v := testutil.ToFloat64(c.SearchCalls.WithLabelValues("wikipedia", "error")); v != 1 {
		t.Fatalf("expected 1 wikipedia error, got %v", v)
	}
	if v := testutil.ToFloat64(c.SearchCalls.WithLabelValues("duckduckgo", "success")); v != 1 {
		t.Fatalf("expected 1 duckduckgo success, got %v", v)
	}
}

func TestObserveStats(t *testing.T) {
	c := NewCollector()
	c.Observe(knowledge.Stats{Entries: 7, Connections: 4, Efficiency: 0.42})

	if v := testutil.ToFloat64(c.Entries); v != 7 {
		t.Fatalf("expected entries gauge 7, got %v", v)
	}
	if v := testutil.ToFloat64(c.Connections); v != 4 {
		t.Fatalf("expected connections gauge 4, got %v", v)
	}
	if v := testutil.ToFloat64(c.Efficiency); v != 0.42 {
		t.Fatalf("expected efficiency gauge 0.42, got %v", v)
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.EntryStored()
	if v := testutil.ToFloat64(b.Stored); v != 0 {
		t.Fatalf("collectors share state, got %v", v)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := NewCollector()
	c.EntryStored()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "picomind_entries_stored_total 1") {
		t.Fatalf("expected stored counter in output:\n%s", body)
	}
}

func TestStoreWiring(t *testing.T) {
	c := NewCollector()
	store := knowledge.New(storage.NewFileMedium(t.TempDir()), knowledge.WithRecorder(c))
	if _, err := store.Store("topic", knowledge.Content{}, ""); err != nil {
		t.Fatal(err)
	}
	store.Retrieve("topic", 5)
	c.Observe(store.Statistics())

	if v := testutil.ToFloat64(c.Stored); v != 1 {
		t.Fatalf("expected 1 stored via store, got %v", v)
	}
	if v := testutil.ToFloat64(c.Entries); v != 1 {
		t.Fatalf("expected entries gauge 1, got %v", v)
	}
}
