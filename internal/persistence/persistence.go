// Package persistence implements whole-snapshot persistence:
// init/load/save over a serializable Snapshot, with no transactional
// requirement. Three concrete backends satisfy the Port interface:
// memory (tests), file (JSON at a configured path, watched with
// fsnotify for external edits), and sqlite (a single-row upsert).
package persistence

import (
	"github.com/rcourtman/insightctl/internal/state"
)

// Port is the persistence contract every backend implements.
type Port interface {
	Init() error
	Load() (*state.Snapshot, error)
	Save(snap state.Snapshot) error
}
