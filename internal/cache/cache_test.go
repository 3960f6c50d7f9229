package cache

import (
	"testing"
	"time"
)

func TestTTL_SetGet(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get() = %q, %v; want v, true", got, ok)
	}
}

func TestTTL_Miss(t *testing.T) {
	c := NewTTL[int](time.Minute)
	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
	hits, misses := c.Stats()
	if hits != 0 || misses != 1 {
		t.Errorf("Stats() = %d, %d; want 0, 1", hits, misses)
	}
}

func TestTTL_Expiry(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.SetFor("k", "v", -time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestTTL_SetForOverridesDefault(t *testing.T) {
	c := NewTTL[string](-time.Second)
	c.SetFor("k", "v", time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("expected per-entry TTL to keep entry alive")
	}
}

func TestTTL_Delete(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected deleted key to miss")
	}
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	s := NewSnapshotStore(8)
	if _, ok := s.Get("/api/deals?limit=10"); ok {
		t.Fatal("expected empty store to miss")
	}

	s.Save("/api/deals?limit=10", []byte(`{"count":1}`), `"abc"`)
	snap, ok := s.Get("/api/deals?limit=10")
	if !ok {
		t.Fatal("expected snapshot after Save")
	}
	if string(snap.Body) != `{"count":1}` || snap.ETag != `"abc"` {
		t.Errorf("unexpected snapshot: %q %q", snap.Body, snap.ETag)
	}
}

func TestSnapshotStore_CopiesBody(t *testing.T) {
	s := NewSnapshotStore(8)
	body := []byte(`original`)
	s.Save("k", body, `"e"`)
	body[0] = 'X'
	snap, _ := s.Get("k")
	if string(snap.Body) != "original" {
		t.Errorf("snapshot body aliased caller buffer: %q", snap.Body)
	}
}

func TestSnapshotStore_OverwritesPerKey(t *testing.T) {
	s := NewSnapshotStore(8)
	s.Save("k", []byte("one"), `"1"`)
	s.Save("k", []byte("two"), `"2"`)
	snap, _ := s.Get("k")
	if string(snap.Body) != "two" || snap.ETag != `"2"` {
		t.Errorf("expected newest snapshot, got %q %q", snap.Body, snap.ETag)
	}
}

func TestSnapshotStore_BoundedWithLRUEviction(t *testing.T) {
	s := NewSnapshotStore(3)
	s.Save("a", []byte("a"), `"a"`)
	s.Save("b", []byte("b"), `"b"`)
	s.Save("c", []byte("c"), `"c"`)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := s.Get("a"); !ok {
		t.Fatal("expected a to be retained")
	}

	s.Save("d", []byte("d"), `"d"`)
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want store capped at 3", s.Len())
	}
	if _, ok := s.Get("b"); ok {
		t.Error("least-recently-used entry should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := s.Get(key); !ok {
			t.Errorf("expected %q to survive eviction", key)
		}
	}
}

func TestSnapshotStore_NeverExceedsCap(t *testing.T) {
	s := NewSnapshotStore(5)
	for i := 0; i < 100; i++ {
		s.Save("/api/deals?cursor="+string(rune('a'+i%26))+string(rune('a'+i/26)), []byte("body"), `"e"`)
	}
	if s.Len() > 5 {
		t.Errorf("Len() = %d after 100 distinct keys, want ≤ 5", s.Len())
	}
}

func TestSnapshotStore_ReSaveDoesNotEvict(t *testing.T) {
	s := NewSnapshotStore(2)
	s.Save("a", []byte("1"), `"1"`)
	s.Save("b", []byte("1"), `"1"`)
	s.Save("a", []byte("2"), `"2"`)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, re-saving an existing key must not grow or shrink the store", s.Len())
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("re-save of an existing key evicted an unrelated entry")
	}
}
