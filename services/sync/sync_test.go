package sync

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docmirror/docmirror/db/indexdb"
	"github.com/docmirror/docmirror/db/kvdb"
	"github.com/docmirror/docmirror/drive"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/services/extract"
	"github.com/docmirror/docmirror/services/index"
)

func newTestLogger() logger.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeRemote serves listings and file bodies from memory, recording every
// fetched file id in order.
type fakeRemote struct {
	mu       sync.Mutex
	tempDir  string
	files    []drive.RemoteFile
	children map[string][]drive.RemoteFile
	shared   []drive.RemoteFile
	bodies   map[string]string
	failIDs  map[string]bool
	listErr  error
	fetched  []string
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeRemote) List(ctx context.Context, folderID string, queryOverride string) ([]drive.RemoteFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeRemote) ListChildren(ctx context.Context, folderID string) ([]drive.RemoteFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.children[folderID], nil
}

func (f *fakeRemote) ListSharedWithMe(ctx context.Context) ([]drive.RemoteFile, error) {
	return f.shared, nil
}

func (f *fakeRemote) Download(ctx context.Context, fileID string) (string, error) {
	return f.fetch(fileID)
}

func (f *fakeRemote) Export(ctx context.Context, fileID string, exportMime string) (string, error) {
	return f.fetch(fileID)
}

func (f *fakeRemote) fetch(fileID string) (string, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, fileID)
	f.mu.Unlock()

	if f.failIDs[fileID] {
		return "", errors.New("remote fetch failed")
	}

	path := filepath.Join(f.tempDir, fileID+".txt")
	if err := os.WriteFile(path, []byte(f.bodies[fileID]), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeRemote) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type testHarness struct {
	service *Service
	remote  *fakeRemote
	docs    *docstore.Store
	kv      kvdb.DB
	index   *indexdb.Store
}

func newTestHarness(t *testing.T, assert *require.Assertions) *testHarness {
	t.Helper()

	testLogger := newTestLogger()
	tempDir := t.TempDir()

	kvDB, err := kvdb.New(testLogger, filepath.Join(tempDir, "kv.db"))
	assert.NoError(err)
	t.Cleanup(func() { kvDB.Close() })

	docs := docstore.New()
	indexStore := indexdb.NewStore(testLogger, filepath.Join(tempDir, "index.json"))
	indexer := index.New(testLogger, docs, indexStore)

	remote := &fakeRemote{
		tempDir:  tempDir,
		children: make(map[string][]drive.RemoteFile),
		bodies:   make(map[string]string),
		failIDs:  make(map[string]bool),
	}

	service := New(testLogger, remote, extract.New(testLogger), docs, NewStateStore(testLogger, kvDB), indexer, filepath.Join(tempDir, "datasets"))

	return &testHarness{service: service, remote: remote, docs: docs, kv: kvDB, index: indexStore}
}

func textFile(id string, name string, modified string) drive.RemoteFile {
	return drive.RemoteFile{
		ID:           id,
		Name:         name,
		MimeType:     "text/plain",
		ModifiedTime: modified,
		ViewLink:     "https://example.com/" + id,
	}
}

func TestSyncCommitsDocumentsAndIndex(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{
		textFile("doc-1", "report.txt", "2026-08-01T00:00:00Z"),
		textFile("doc-2", "notes.txt", "2026-08-02T00:00:00Z"),
	}
	h.remote.bodies["doc-1"] = "turbine maintenance report"
	h.remote.bodies["doc-2"] = "shift handover notes"

	summary, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)
	assert.Equal(2, summary.Processed)
	assert.Equal(0, summary.Failed)
	assert.Equal(2, summary.Total)
	assert.NotEmpty(summary.PassID)

	doc, ok := h.docs.Get("doc-1")
	assert.True(ok)
	assert.Equal("report.txt", doc.Name)
	assert.Equal("turbine maintenance report", doc.Content.Text)

	assert.True(h.index.Current().HasDocument("doc-1"))
	assert.True(h.index.Current().HasDocument("doc-2"))

	// The pass timestamp is recorded even on a clean run.
	lastSync, err := h.kv.Get(kvdb.MetaBucket, "last_sync_time")
	assert.NoError(err)
	assert.NotEmpty(lastSync)
}

func TestSyncSkipsFolders(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{
		{ID: "folder-1", Name: "reports", MimeType: drive.MimeTypeFolder},
		textFile("doc-1", "report.txt", "2026-08-01T00:00:00Z"),
	}
	h.remote.bodies["doc-1"] = "body"

	summary, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)
	assert.Equal(1, summary.Processed)
	assert.Equal([]string{"doc-1"}, h.remote.fetchedIDs())
}

func TestIncrementalSyncSkipsUnchangedFiles(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{
		textFile("doc-1", "stable.txt", "2026-08-01T00:00:00Z"),
		textFile("doc-2", "edited.txt", "2026-08-02T00:00:00Z"),
	}
	h.remote.bodies["doc-1"] = "stable body"
	h.remote.bodies["doc-2"] = "first body"

	_, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)

	h.remote.files[1].ModifiedTime = "2026-08-05T00:00:00Z"
	h.remote.bodies["doc-2"] = "edited body"
	h.remote.fetched = nil

	summary, err := h.service.Sync(context.Background(), "", true)
	assert.NoError(err)
	assert.Equal(1, summary.Processed)
	assert.True(summary.Incremental)
	assert.Equal([]string{"doc-2"}, h.remote.fetchedIDs())

	doc, ok := h.docs.Get("doc-2")
	assert.True(ok)
	assert.Equal("edited body", doc.Content.Text)
}

func TestSyncIsolatesPerFileFailures(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{
		textFile("doc-1", "good.txt", "2026-08-01T00:00:00Z"),
		textFile("doc-2", "bad.txt", "2026-08-01T00:00:00Z"),
		textFile("doc-3", "also-good.txt", "2026-08-01T00:00:00Z"),
	}
	h.remote.bodies["doc-1"] = "good"
	h.remote.bodies["doc-3"] = "also good"
	h.remote.failIDs["doc-2"] = true

	summary, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)
	assert.Equal(2, summary.Processed)
	assert.Equal(1, summary.Failed)

	_, ok := h.docs.Get("doc-2")
	assert.False(ok)

	// A failed pass still rebuilds the index over what was committed.
	assert.True(h.index.Current().HasDocument("doc-1"))
	assert.True(h.index.Current().HasDocument("doc-3"))
}

func TestSyncListingFailureAbortsPass(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.listErr = errors.New("remote unavailable")

	_, err := h.service.Sync(context.Background(), "", false)
	assert.Error(err)
	assert.Equal(0, h.docs.Count())
}

func TestSyncRejectsConcurrentPass(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{textFile("doc-1", "slow.txt", "2026-08-01T00:00:00Z")}
	h.remote.bodies["doc-1"] = "body"
	h.remote.started = make(chan struct{})
	h.remote.release = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.service.Sync(context.Background(), "", false)
		firstDone <- err
	}()

	// Wait until the first pass is mid-fetch and holding the in-flight
	// slot, then race it.
	<-h.remote.started

	_, err := h.service.Sync(context.Background(), "", false)
	assert.True(errors.Is(err, ErrSyncInProgress))

	close(h.remote.release)
	assert.NoError(<-firstDone)
}

func TestSyncRecursiveRequiresFolderID(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	_, err := h.service.SyncRecursive(context.Background(), "")
	assert.True(errors.Is(err, ErrMissingFolderID))
}

func TestSyncRecursiveProcessesFilesBeforeSubfolders(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.children["root"] = []drive.RemoteFile{
		{ID: "sub-1", Name: "archive", MimeType: drive.MimeTypeFolder},
		textFile("doc-1", "top.txt", "2026-08-01T00:00:00Z"),
	}
	h.remote.children["sub-1"] = []drive.RemoteFile{
		textFile("doc-2", "nested.txt", "2026-08-01T00:00:00Z"),
	}
	h.remote.bodies["doc-1"] = "top level"
	h.remote.bodies["doc-2"] = "nested"

	summary, err := h.service.SyncRecursive(context.Background(), "root")
	assert.NoError(err)
	assert.Equal(2, summary.Processed)
	assert.True(summary.Recursive)
	assert.Equal([]string{"doc-1", "doc-2"}, h.remote.fetchedIDs())
}

// minimalXLSX builds a one-sheet workbook archive in memory.
func minimalXLSX(t *testing.T, assert *require.Assertions) string {
	t.Helper()

	parts := []struct {
		name    string
		content string
	}{
		{
			name:    "xl/workbook.xml",
			content: `<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets><sheet name="Datos" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		},
		{
			name:    "xl/_rels/workbook.xml.rels",
			content: `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Target="worksheets/sheet1.xml"/></Relationships>`,
		},
		{
			name:    "xl/worksheets/sheet1.xml",
			content: `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>Cantidad</t></is></c></row><row r="2"><c r="A2"><v>12</v></c></row></sheetData></worksheet>`,
		},
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, part := range parts {
		entry, err := writer.Create(part.name)
		assert.NoError(err)
		_, err = entry.Write([]byte(part.content))
		assert.NoError(err)
	}
	assert.NoError(writer.Close())

	return buf.String()
}

func TestSyncCopiesSpreadsheetsToDatasets(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{
		{
			ID:           "sheet-1",
			Name:         "registro.xlsx",
			MimeType:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			ModifiedTime: "2026-08-01T00:00:00Z",
		},
	}
	workbook := minimalXLSX(t, assert)
	h.remote.bodies["sheet-1"] = workbook

	summary, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)
	assert.Equal(1, summary.Processed)

	doc, ok := h.docs.Get("sheet-1")
	assert.True(ok)
	assert.Equal(docstore.KindSpreadsheet, doc.Content.Kind)

	copied, err := os.ReadFile(filepath.Join(h.service.datasetsDir, "registro.xlsx"))
	assert.NoError(err)
	assert.Equal(workbook, string(copied))
}

func TestDeleteRemovesDocumentAndState(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{textFile("doc-1", "gone.txt", "2026-08-01T00:00:00Z")}
	h.remote.bodies["doc-1"] = "to be deleted"

	_, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)
	assert.True(h.index.Current().HasDocument("doc-1"))

	assert.True(h.service.Delete("doc-1"))
	assert.False(h.service.Delete("doc-1"))

	_, ok := h.docs.Get("doc-1")
	assert.False(ok)
	assert.False(h.index.Current().HasDocument("doc-1"))

	// The sync-state entry goes too, so a re-sync fetches the file again.
	state := NewStateStore(newTestLogger(), h.kv).Load()
	_, tracked := state.Files["doc-1"]
	assert.False(tracked)
}

func TestForceReindexReportsStats(t *testing.T) {
	assert := require.New(t)
	h := newTestHarness(t, assert)

	h.remote.files = []drive.RemoteFile{textFile("doc-1", "a.txt", "2026-08-01T00:00:00Z")}
	h.remote.bodies["doc-1"] = "alpha beta gamma"

	_, err := h.service.Sync(context.Background(), "", false)
	assert.NoError(err)

	stats := h.service.ForceReindex()
	assert.Equal(3, stats.Tokens)
	assert.Equal(1, stats.Documents)
}

func TestStateStoreRoundTrip(t *testing.T) {
	assert := require.New(t)

	kvDB, err := kvdb.New(newTestLogger(), filepath.Join(t.TempDir(), "kv.db"))
	assert.NoError(err)
	defer kvDB.Close()

	store := NewStateStore(newTestLogger(), kvDB)

	empty := store.Load()
	assert.Empty(empty.LastSyncTime)
	assert.Empty(empty.Files)

	store.SetFile("doc-1", "2026-08-01T00:00:00Z")
	store.SetLastSyncTime("2026-08-10T12:00:00Z")

	state := store.Load()
	assert.Equal("2026-08-10T12:00:00Z", state.LastSyncTime)
	assert.Equal("2026-08-01T00:00:00Z", state.Files["doc-1"])

	store.DeleteFile("doc-1")
	state = store.Load()
	_, ok := state.Files["doc-1"]
	assert.False(ok)
}
