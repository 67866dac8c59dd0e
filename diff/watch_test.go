package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBatchFile(t *testing.T, dir string, seq uint64) string {
	t.Helper()
	path := filepath.Join(dir, "batch.json")
	data := fmt.Sprintf(`{"sequence":%d,"diffs":[]}`, seq)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing batch file: %v", err)
	}
	return path
}

func waitBatch(t *testing.T, w *Watcher) Batch {
	t.Helper()
	select {
	case b, ok := <-w.Batches:
		if !ok {
			t.Fatal("Batches closed before a batch arrived")
		}
		return b
	case err := <-w.Errors:
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch within 5s")
	}
	return Batch{}
}

func TestWatcherDeliversBatchFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	writeBatchFile(t, dir, 1)
	if b := waitBatch(t, w); b.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", b.Sequence)
	}
}

func TestWatcherDebounceKeepsLastRewrite(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Two rewrites inside the debounce window: the read is deferred,
	// not skipped, so the final content is what arrives.
	writeBatchFile(t, dir, 1)
	writeBatchFile(t, dir, 2)
	if b := waitBatch(t, w); b.Sequence != 2 {
		t.Fatalf("sequence = %d, want the later rewrite (2)", b.Sequence)
	}
}

func TestWatcherCloseDuringPendingDelivery(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	// Close while a write may still be in flight. Undelivered batches
	// are fine; a send on a closed channel is not.
	writeBatchFile(t, dir, 1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for range w.Batches {
	}
	for range w.Errors {
	}
}
