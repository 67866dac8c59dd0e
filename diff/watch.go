package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher tails a directory the editor writes batch files into and
// delivers parsed batches. Rapid rewrites of the same file are
// debounced by deferring the read, so the last write in a burst is the
// one delivered.
type Watcher struct {
	watcher *fsnotify.Watcher
	Batches chan Batch
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Batches: make(chan Batch, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

// run owns Batches and Errors; they close only when it returns, so a
// concurrent Close can never race a send on a closed channel.
func (w *Watcher) run() {
	defer close(w.Batches)
	defer close(w.Errors)

	pending := map[string]*time.Timer{}
	ready := make(chan string, 16)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isBatchFile(event.Name) {
				continue
			}
			if t, armed := pending[event.Name]; armed {
				t.Reset(watchDebounce)
				continue
			}
			name := event.Name
			pending[name] = time.AfterFunc(watchDebounce, func() {
				select {
				case ready <- name:
				case <-w.closeCh:
				}
			})
		case name := <-ready:
			delete(pending, name)
			w.deliver(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			case <-w.closeCh:
				return
			}
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) deliver(name string) {
	batch, err := readBatchFile(name)
	if err != nil {
		select {
		case w.Errors <- err:
		case <-w.closeCh:
		}
		return
	}
	select {
	case w.Batches <- batch:
	case <-w.closeCh:
	}
}

func readBatchFile(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("reading batch file %s: %w", path, err)
	}
	return ParseBatch(data)
}

func isBatchFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
