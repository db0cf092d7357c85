package sync

import (
	"github.com/docmirror/docmirror/db/kvdb"
	"github.com/docmirror/docmirror/logger"
)

const lastSyncTimeKey = "last_sync_time"

// SyncState is a read-only snapshot of the persisted sync bookkeeping: the
// timestamp of the last completed pass and, per remote file id, the
// modification time last seen when the file was committed.
type SyncState struct {
	LastSyncTime string
	Files        map[string]string
}

// StateStore persists sync state through the key-value database. Reads
// swallow corruption and missing data into the empty state; writes that fail
// are logged and tolerated, which only means some files get re-fetched on
// the next pass.
type StateStore struct {
	logger logger.Logger
	db     kvdb.DB
}

func NewStateStore(logger logger.Logger, db kvdb.DB) *StateStore {
	return &StateStore{
		logger: logger,
		db:     db,
	}
}

func (s *StateStore) Load() SyncState {
	state := SyncState{Files: make(map[string]string)}

	if value, err := s.db.Get(kvdb.MetaBucket, lastSyncTimeKey); err == nil {
		state.LastSyncTime = value
	}

	files, err := s.db.GetAll(kvdb.FilesBucket)
	if err != nil {
		s.logger.Warn("failed to load file sync state, starting empty", "err", err.Error())
		return state
	}
	state.Files = files

	return state
}

// SetFile records the modification time last seen for a file. Callers must
// invoke it only after the document has been committed to the document
// store, so a crash in between leaves the entry stale and the file is
// retried on the next pass.
func (s *StateStore) SetFile(id string, modifiedTime string) {
	if err := s.db.Set(kvdb.FilesBucket, id, modifiedTime); err != nil {
		s.logger.Warn("failed to persist file sync state", "id", id, "err", err.Error())
	}
}

func (s *StateStore) DeleteFile(id string) {
	if err := s.db.Delete(kvdb.FilesBucket, id); err != nil {
		s.logger.Warn("failed to delete file sync state", "id", id, "err", err.Error())
	}
}

func (s *StateStore) SetLastSyncTime(timestamp string) {
	if err := s.db.Set(kvdb.MetaBucket, lastSyncTimeKey, timestamp); err != nil {
		s.logger.Warn("failed to persist last sync time", "err", err.Error())
	}
}
