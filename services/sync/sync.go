package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/docmirror/docmirror/drive"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/services/index"
)

var (
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrMissingFolderID = errors.New("folder id is required for recursive sync")
)

// RemoteStore is the slice of the remote file store the orchestrator needs.
type RemoteStore interface {
	List(ctx context.Context, folderID string, queryOverride string) ([]drive.RemoteFile, error)
	ListChildren(ctx context.Context, folderID string) ([]drive.RemoteFile, error)
	ListSharedWithMe(ctx context.Context) ([]drive.RemoteFile, error)
	Download(ctx context.Context, fileID string) (string, error)
	Export(ctx context.Context, fileID string, exportMime string) (string, error)
}

// Extractor converts a fetched file into document content.
type Extractor interface {
	Extract(path string, mimeType string, name string) docstore.Content
}

type Summary struct {
	PassID      string `json:"pass_id"`
	Processed   int    `json:"processed"`
	Failed      int    `json:"failed"`
	Total       int    `json:"total"`
	Incremental bool   `json:"incremental"`
	Recursive   bool   `json:"recursive"`
}

// Service drives sync passes: decide which remote files changed, fetch and
// extract them, commit documents and sync state, then rebuild the index.
// A single pass runs at a time; a second request while one is active is
// rejected, not queued.
type Service struct {
	logger      logger.Logger
	remote      RemoteStore
	extractor   Extractor
	docs        *docstore.Store
	state       *StateStore
	indexer     *index.Service
	datasetsDir string
	inFlight    atomic.Bool
}

func New(logger logger.Logger, remote RemoteStore, extractor Extractor, docs *docstore.Store, state *StateStore, indexer *index.Service, datasetsDir string) *Service {
	return &Service{
		logger:      logger,
		remote:      remote,
		extractor:   extractor,
		docs:        docs,
		state:       state,
		indexer:     indexer,
		datasetsDir: datasetsDir,
	}
}

// Sync runs one flat pass. With incremental set, the remote listing is
// narrowed server-side to files modified after the last pass and files whose
// modification time matches the recorded value are skipped without fetching.
// Per-file failures are counted and do not abort the pass; a listing failure
// aborts it entirely.
func (s *Service) Sync(ctx context.Context, folderID string, incremental bool) (Summary, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("rejecting sync request, another sync is in progress")
		return Summary{}, ErrSyncInProgress
	}
	defer s.inFlight.Store(false)

	passID := uuid.New().String()
	state := s.state.Load()
	s.logger.Info("starting sync", "pass_id", passID, "folder_id", folderID, "incremental", incremental)

	parts := []string{"trashed=false"}
	if folderID != "" {
		parts = append([]string{fmt.Sprintf("'%s' in parents", folderID)}, parts...)
	}
	if incremental && state.LastSyncTime != "" {
		parts = append(parts, fmt.Sprintf("modifiedTime > '%s'", state.LastSyncTime))
	}

	files, err := s.remote.List(ctx, "", strings.Join(parts, " and "))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list remote files: %w", err)
	}

	summary := Summary{PassID: passID, Incremental: incremental}
	for _, file := range files {
		if file.IsFolder() {
			continue
		}
		if incremental && state.Files[file.ID] == file.ModifiedTime && state.Files[file.ID] != "" {
			continue
		}
		if err := s.processFile(ctx, file); err != nil {
			s.logger.Warn("failed to process file", "name", file.Name, "id", file.ID, "err", err.Error())
			summary.Failed++
			continue
		}
		summary.Processed++
	}

	s.finishPass()
	summary.Total = s.docs.Count()
	s.logger.Info("sync complete", "pass_id", passID, "processed", summary.Processed, "failed", summary.Failed, "total", summary.Total)

	return summary, nil
}

// SyncRecursive walks a folder tree. For each folder all files are processed
// before recursing into subfolders, so an interrupted walk still leaves
// every visited folder's files committed. There is no incremental skip:
// every file is re-fetched.
func (s *Service) SyncRecursive(ctx context.Context, folderID string) (Summary, error) {
	if folderID == "" {
		return Summary{}, ErrMissingFolderID
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("rejecting recursive sync request, another sync is in progress")
		return Summary{}, ErrSyncInProgress
	}
	defer s.inFlight.Store(false)

	passID := uuid.New().String()
	s.logger.Info("starting recursive sync", "pass_id", passID, "folder_id", folderID)

	summary := Summary{PassID: passID, Recursive: true}
	if err := s.walk(ctx, folderID, &summary); err != nil {
		return Summary{}, err
	}

	s.finishPass()
	summary.Total = s.docs.Count()
	s.logger.Info("recursive sync complete", "pass_id", passID, "processed", summary.Processed, "failed", summary.Failed, "total", summary.Total)

	return summary, nil
}

func (s *Service) walk(ctx context.Context, folderID string, summary *Summary) error {
	children, err := s.remote.ListChildren(ctx, folderID)
	if err != nil {
		return fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}

	var subfolders []drive.RemoteFile
	for _, child := range children {
		if child.IsFolder() {
			subfolders = append(subfolders, child)
			continue
		}
		if err := s.processFile(ctx, child); err != nil {
			s.logger.Warn("failed to process file", "name", child.Name, "id", child.ID, "err", err.Error())
			summary.Failed++
			continue
		}
		summary.Processed++
	}

	for _, subfolder := range subfolders {
		if err := s.walk(ctx, subfolder.ID, summary); err != nil {
			return err
		}
	}

	return nil
}

// processFile fetches, extracts and commits one remote file. The sync-state
// entry is written only after the document store upsert, so an interrupted
// run retries the file instead of losing it.
func (s *Service) processFile(ctx context.Context, file drive.RemoteFile) error {
	var tempPath string
	var err error
	if file.IsNative() {
		tempPath, err = s.remote.Export(ctx, file.ID, drive.ExportMimeFor(file.MimeType))
	} else {
		tempPath, err = s.remote.Download(ctx, file.ID)
	}
	if err != nil {
		return err
	}
	defer os.Remove(tempPath)

	content := s.extractor.Extract(tempPath, file.MimeType, file.Name)

	s.docs.Upsert(docstore.Document{
		ID:           file.ID,
		Name:         file.Name,
		MimeType:     file.MimeType,
		ModifiedTime: file.ModifiedTime,
		ViewLink:     file.ViewLink,
		Content:      content,
	})
	s.state.SetFile(file.ID, file.ModifiedTime)

	if content.Kind == docstore.KindSpreadsheet {
		if err := s.copyToDatasets(tempPath, file.Name); err != nil {
			s.logger.Warn("failed to copy spreadsheet to datasets", "name", file.Name, "err", err.Error())
		}
	}

	return nil
}

// copyToDatasets keeps a raw copy of every synced spreadsheet for external
// tabular tooling. The copy is a side effect and stays out of the
// search/index path.
func (s *Service) copyToDatasets(tempPath string, name string) error {
	if s.datasetsDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.datasetsDir, 0755); err != nil {
		return err
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.datasetsDir, name))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// finishPass runs unconditionally after the per-file loop, even when some
// files failed: the pass timestamp advances and the index is rebuilt over
// whatever was committed.
func (s *Service) finishPass() {
	s.state.SetLastSyncTime(time.Now().UTC().Format(time.RFC3339))
	s.indexer.Rebuild()
}

// Delete removes a document and its sync-state entry, then rebuilds the
// index. Returns false when the id is unknown.
func (s *Service) Delete(id string) bool {
	if !s.docs.Delete(id) {
		return false
	}
	s.state.DeleteFile(id)
	s.indexer.Rebuild()
	return true
}

// ForceReindex rebuilds the index from the current document store.
func (s *Service) ForceReindex() index.Stats {
	return s.indexer.Rebuild()
}

// SharedWithMe lists remote files shared with the authenticated user.
func (s *Service) SharedWithMe(ctx context.Context) ([]drive.RemoteFile, error) {
	return s.remote.ListSharedWithMe(ctx)
}
