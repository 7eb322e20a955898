package catalogcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kobodown/internal/kobo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	books := []kobo.Book{
		{RevisionID: "r1", Title: "Apple", Authors: "Ann"},
		{RevisionID: "r2", Title: "Zebra", Authors: "Ann & Ben", Archived: true},
	}
	if err := store.Put(ctx, false, books); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, false, time.Hour)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("fresh cache reported as miss")
	}
	if len(got) != 2 || got[0] != books[0] || got[1] != books[1] {
		t.Fatalf("got %+v, want %+v", got, books)
	}
}

func TestGetMissesOtherMode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, false, []kobo.Book{{RevisionID: "r1", Title: "Apple"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := store.Get(ctx, true, time.Hour); err != nil || ok {
		t.Fatalf("all-mode cache hit from default-mode write: ok=%v err=%v", ok, err)
	}
}

func TestGetStale(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, false, []kobo.Book{{RevisionID: "r1", Title: "Apple"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := store.Get(ctx, false, 0); err != nil || ok {
		t.Fatalf("stale cache reported fresh: ok=%v err=%v", ok, err)
	}
}

func TestPutReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, false, []kobo.Book{{RevisionID: "r1", Title: "Old"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, false, []kobo.Book{{RevisionID: "r2", Title: "New"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, false, time.Hour)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].RevisionID != "r2" {
		t.Fatalf("got %+v, want only r2", got)
	}
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, true, []kobo.Book{{RevisionID: "r1", Title: "Apple"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := store.Get(ctx, true, time.Hour); err != nil || ok {
		t.Fatalf("cache hit after clear: ok=%v err=%v", ok, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, false, []kobo.Book{{RevisionID: "r1", Title: "Apple"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if _, ok, err := store.Get(ctx, false, time.Hour); err != nil || !ok {
		t.Fatalf("data lost across reopen: ok=%v err=%v", ok, err)
	}
}
