package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/mitm-gateway/internal/models"
)

func result(names ...string) models.SearchResult {
	r := models.EmptySearchResult()
	for _, n := range names {
		r.Add(models.ToolDefinition{
			Name:        "docs_" + n,
			BackendName: "docs",
			Kind:        models.ToolKindMCP,
			Parameters: map[string]models.ParameterSpec{
				"q": {Type: models.ParamString, Enum: []any{"a", "b"}},
			},
		}, 0.8)
	}
	return r
}

func TestSearchCache_GetSet(t *testing.T) {
	c := New(5*time.Second, 100)

	key := MakeKey(1, "find invoices", 5)
	c.Set(key, 1, result("get_document", "search_documents"))

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Tools) != 2 || got.Tools[0].Name != "docs_get_document" {
		t.Errorf("unexpected tools %v", got.Tools)
	}
	if got.ConfidenceScores["docs_search_documents"] != 0.8 {
		t.Errorf("unexpected scores %v", got.ConfidenceScores)
	}
}

func TestSearchCache_Miss(t *testing.T) {
	c := New(5*time.Second, 100)

	if _, ok := c.Get("nonexistent"); ok {
		t.Error("expected cache miss for nonexistent key")
	}
}

func TestSearchCache_ReturnsCopies(t *testing.T) {
	c := New(5*time.Second, 100)
	key := MakeKey(1, "q", 5)

	stored := result("a")
	c.Set(key, 1, stored)
	stored.ConfidenceScores["docs_a"] = 0

	got, _ := c.Get(key)
	got.Tools[0].Parameters["q"].Enum[0] = "mutated"
	got.ConfidenceScores["docs_a"] = 0.1

	again, _ := c.Get(key)
	if again.ConfidenceScores["docs_a"] != 0.8 {
		t.Errorf("expected cached score untouched, got %v", again.ConfidenceScores["docs_a"])
	}
	if again.Tools[0].Parameters["q"].Enum[0] != "a" {
		t.Error("expected cached parameters untouched")
	}
}

func TestSearchCache_TTLExpiration(t *testing.T) {
	c := New(time.Minute, 100)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := MakeKey(1, "q", 5)
	c.Set(key, 1, result("a"))

	if _, ok := c.Get(key); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Error("expected cache miss after TTL expiration")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry removed, got %d entries", c.Len())
	}
}

func TestSearchCache_MaxEntries(t *testing.T) {
	c := New(5*time.Second, 3)

	c.Set("key1", 1, result("a"))
	c.Set("key2", 1, result("a"))
	c.Set("key3", 1, result("a"))

	for _, k := range []string{"key1", "key2", "key3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to be in cache", k)
		}
	}

	// Adding a 4th should evict the oldest (key1)
	c.Set("key4", 1, result("a"))

	if _, ok := c.Get("key1"); ok {
		t.Error("expected key1 to be evicted (oldest entry)")
	}
	if _, ok := c.Get("key4"); !ok {
		t.Error("expected key4 to be in cache")
	}
}

func TestSearchCache_OverwriteExistingKey(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Set("key", 1, result("a"))
	c.Set("key", 1, result("b"))

	got, ok := c.Get("key")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Tools[0].Name != "docs_b" {
		t.Errorf("expected updated result, got %s", got.Tools[0].Name)
	}
}

func TestSearchCache_Prune(t *testing.T) {
	c := New(5*time.Second, 100)

	c.Set(MakeKey(1, "q", 5), 1, result("a"))
	c.Set(MakeKey(1, "r", 5), 1, result("a"))
	c.Set(MakeKey(2, "q", 5), 2, result("a"))

	if removed := c.Prune(2); removed != 2 {
		t.Errorf("expected 2 entries pruned, got %d", removed)
	}
	if _, ok := c.Get(MakeKey(2, "q", 5)); !ok {
		t.Error("expected current-version entry to survive")
	}
}

func TestSearchCache_Disabled(t *testing.T) {
	for _, c := range []*SearchCache{New(5*time.Second, 0), New(0, 10), nil} {
		c.Set("key", 1, result("a"))
		if _, ok := c.Get("key"); ok {
			t.Error("expected disabled cache to never hit")
		}
		if c.Len() != 0 {
			t.Errorf("expected disabled cache to stay empty, got %d", c.Len())
		}
	}
}

func TestMakeKey(t *testing.T) {
	if got := MakeKey(7, "  find invoices ", 5); got != "7:5:find invoices" {
		t.Errorf("unexpected key %q", got)
	}
	if MakeKey(1, "q", 5) == MakeKey(2, "q", 5) {
		t.Error("expected version to change the key")
	}
	if MakeKey(1, "5:q", 1) == MakeKey(1, "q", 15) {
		t.Error("expected delimiter in query not to collide")
	}
}

func TestSearchCache_ThreadSafety(t *testing.T) {
	c := New(5*time.Second, 50)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(MakeKey(uint64(n%3), "q"+strconv.Itoa(n%26), 5), uint64(n%3), result("a"))
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(MakeKey(uint64(n%3), "q"+strconv.Itoa(n%26), 5))
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Prune(uint64(n % 3))
		}(i)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("expected at most 50 entries, got %d", c.Len())
	}
}
