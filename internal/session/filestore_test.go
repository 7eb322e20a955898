package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store.Set(FieldDeviceID, "dev-1")
	store.Set(FieldAccessToken, "acc-1")
	if err := store.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := reopened.Get(FieldDeviceID); got != "dev-1" {
		t.Fatalf("device id lost: %q", got)
	}
	if got := reopened.Get(FieldAccessToken); got != "acc-1" {
		t.Fatalf("access token lost: %q", got)
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if got := store.Get(FieldDeviceID); got != "" {
		t.Fatalf("expected empty store, got %q", got)
	}
}

func TestFileStoreUsesReferenceKeyNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store.Set(FieldUserKey, "k")
	store.Set(FieldUserID, "u")
	if err := store.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	store.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["UserKey"] != "k" || m["UserId"] != "u" {
		t.Fatalf("unexpected key names: %v", m)
	}
}

func TestFileStoreIgnoresNonStringAndEmptyValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"DeviceId": 42, "AccessToken": "", "RefreshToken": "r"}`), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if got := store.Get(FieldDeviceID); got != "" {
		t.Fatalf("non-string value kept: %q", got)
	}
	if got := store.Get(FieldAccessToken); got != "" {
		t.Fatalf("empty value kept: %q", got)
	}
	if got := store.Get(FieldRefreshToken); got != "r" {
		t.Fatalf("string value lost: %q", got)
	}
}

func TestFileStoreSecondLockFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	first, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer first.Close()

	if _, err := OpenFileStore(path); err == nil {
		t.Fatal("second open should fail while lock is held")
	}
}
