package storage

import "github.com/pkg/errors"

// Open opens the named backend at path. An empty backend selects LevelDB.
func Open(backend, path string) (DB, error) {
	switch backend {
	case "", BackendLevelDB:
		return NewLevelDB(path)
	case BackendBadger:
		return NewBadgerDB(path)
	default:
		return nil, errors.Errorf("unknown db backend %q", backend)
	}
}
