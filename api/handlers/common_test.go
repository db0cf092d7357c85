// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/docmirror/docmirror/db/indexdb"
	"github.com/docmirror/docmirror/db/kvdb"
	"github.com/docmirror/docmirror/drive"
	"github.com/docmirror/docmirror/logger"
	"github.com/docmirror/docmirror/services/assemble"
	"github.com/docmirror/docmirror/services/docstore"
	"github.com/docmirror/docmirror/services/extract"
	"github.com/docmirror/docmirror/services/index"
	"github.com/docmirror/docmirror/services/search"
	syncservice "github.com/docmirror/docmirror/services/sync"
	"github.com/docmirror/docmirror/validation"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

type testCase struct {
	name           string
	requestHeaders map[string]string
	requestBody    map[string]any
	queryParams    map[string]string
	expectedStatus int
}

func newTestLogger() logger.Logger {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// fakeRemote serves canned listings and plain-text file bodies from memory.
type fakeRemote struct {
	tempDir string
	files   []drive.RemoteFile
	bodies  map[string]string
	err     error
}

func (f *fakeRemote) List(ctx context.Context, folderID string, queryOverride string) ([]drive.RemoteFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func (f *fakeRemote) ListChildren(ctx context.Context, folderID string) ([]drive.RemoteFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func (f *fakeRemote) ListSharedWithMe(ctx context.Context) ([]drive.RemoteFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func (f *fakeRemote) Download(ctx context.Context, fileID string) (string, error) {
	path := filepath.Join(f.tempDir, fileID+".txt")
	if err := os.WriteFile(path, []byte(f.bodies[fileID]), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeRemote) Export(ctx context.Context, fileID string, exportMime string) (string, error) {
	return f.Download(ctx, fileID)
}

type testServer struct {
	router *gin.Engine
	remote *fakeRemote
	docs   *docstore.Store
	sync   *syncservice.Service
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {
	t.Helper()

	testLogger := newTestLogger()
	tempDir := t.TempDir()

	kvDB, err := kvdb.New(testLogger, filepath.Join(tempDir, "kv.db"))
	assert.NoError(err, "could not create kv database")
	t.Cleanup(func() {
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	docs := docstore.New()
	indexStore := indexdb.NewStore(testLogger, filepath.Join(tempDir, "index.json"))
	indexer := index.New(testLogger, docs, indexStore)
	searchService := search.New(testLogger, docs, indexStore)
	assembler := assemble.New(testLogger, searchService, docs)

	remote := &fakeRemote{tempDir: tempDir, bodies: make(map[string]string)}
	stateStore := syncservice.NewStateStore(testLogger, kvDB)
	syncService := syncservice.New(testLogger, remote, extract.New(testLogger), docs, stateStore, indexer, filepath.Join(tempDir, "datasets"))

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupSync(router, testLogger, syncService, validator)
	SetupSearch(router, testLogger, searchService, validator)
	SetupDocuments(router, testLogger, syncService, docs)
	SetupChat(router, testLogger, assembler, validator)

	return &testServer{router: router, remote: remote, docs: docs, sync: syncService}
}

// syncCorpus loads the fake remote with plain-text files and runs one pass.
func (s *testServer) syncCorpus(assert *require.Assertions, files map[string]string) {
	for name, body := range files {
		s.remote.files = append(s.remote.files, drive.RemoteFile{
			ID:           name,
			Name:         name,
			MimeType:     "text/plain",
			ModifiedTime: "2026-08-01T00:00:00Z",
		})
		s.remote.bodies[name] = body
	}

	_, err := s.sync.Sync(context.Background(), "", false)
	assert.NoError(err, "could not sync test corpus")
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]any, queryParams map[string]string) *httptest.ResponseRecorder {
	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}

	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func decodeResponse(assert *require.Assertions, w *httptest.ResponseRecorder) map[string]any {
	var responseMap map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &responseMap)
	assert.NoError(err, "could not decode response body")
	return responseMap
}

var errRemoteUnavailable = errors.New("remote unavailable")
