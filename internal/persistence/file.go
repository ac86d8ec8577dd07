package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rcourtman/insightctl/internal/logging"
	"github.com/rcourtman/insightctl/internal/state"
)

// File is a JSON-snapshot Port backed by a single file on disk, watched
// with fsnotify so an externally-replaced snapshot (e.g. restored from
// backup while the process is running) is picked up on the next Load.
type File struct {
	path string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	onChange func()
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Init ensures the snapshot's parent directory exists and starts a
// watcher on it. Watch failures are logged, not fatal: persistence
// still works via explicit Load/Save without live reload.
func (f *File) Init() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Named("persistence").Warn().Err(err).Msg("could not start snapshot file watcher")
		return nil
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		logging.Named("persistence").Warn().Err(err).Msg("could not watch snapshot directory")
		watcher.Close()
		return nil
	}
	f.watcher = watcher
	go f.watch()
	return nil
}

// OnChange registers a callback fired whenever the watched file is
// written or created, whether by another writer or by this process's
// own Save; the callback cannot tell the two apart.
func (f *File) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

func (f *File) watch() {
	logger := logging.Named("persistence")
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.mu.Lock()
			cb := f.onChange
			f.mu.Unlock()
			if cb != nil {
				cb()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("snapshot file watcher error")
		}
	}
}

// Load reads and decodes the snapshot file. A missing file is not an
// error; it returns a nil snapshot so the caller can seed fresh state.
func (f *File) Load() (*state.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save atomically overwrites the snapshot file: write to a temp file in
// the same directory, then rename, so a crash mid-write never leaves a
// truncated snapshot.
func (f *File) Save(snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
