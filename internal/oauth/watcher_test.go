package oauth

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreWatcherFiresOnExternalSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 1)
	watcher := NewStoreWatcher(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// An external login writes the token file via temp-file-and-rename; the
	// watcher must still see it.
	if err := store.Save(testCredential()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire after token file save")
	}
}

func TestStoreWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")

	changed := make(chan struct{}, 1)
	watcher := NewStoreWatcher(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	other, err := NewFileStore(filepath.Join(dir, "other.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Save(testCredential()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
		t.Fatal("watcher fired for an unrelated file")
	case <-time.After(1 * time.Second):
	}
}

func TestStoreWatcherStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	watcher := NewStoreWatcher(path, func() {})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	watcher.Stop()
	watcher.Stop()
}
