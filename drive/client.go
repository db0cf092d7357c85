package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/docmirror/docmirror/logger"
)

const listPageSize = 200

// Client wraps the Drive v3 API for listing, downloading and exporting
// files. It is read-only against the remote store.
type Client struct {
	logger  logger.Logger
	service *driveapi.Service
	tempDir string
}

// NewClient builds a Drive client from an OAuth client credentials file and
// a previously stored token. Missing or unreadable credentials yield
// ErrNotAuthenticated: acquiring a token is handled outside this engine.
func NewClient(ctx context.Context, logger logger.Logger, credentialsPath string, tokenPath string, tempDir string) (*Client, error) {
	credentials, err := os.ReadFile(credentialsPath)
	if err != nil {
		logger.Warn("drive credentials not available", "path", credentialsPath, "err", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, err)
	}

	oauthConfig, err := google.ConfigFromJSON(credentials, driveapi.DriveReadonlyScope)
	if err != nil {
		logger.Error("failed to parse drive credentials", "err", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, err)
	}

	token, err := readToken(tokenPath)
	if err != nil {
		logger.Warn("drive token not available", "path", tokenPath, "err", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, err)
	}

	service, err := driveapi.NewService(ctx, option.WithTokenSource(oauthConfig.TokenSource(ctx, token)))
	if err != nil {
		logger.Error("failed to create drive service", "err", err.Error())
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Client{
		logger:  logger,
		service: service,
		tempDir: tempDir,
	}, nil
}

func readToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, err
	}
	return token, nil
}

// List enumerates remote files. With no arguments it lists every non-trashed
// file; folderID restricts to a folder's children; queryOverride replaces
// the query entirely.
func (c *Client) List(ctx context.Context, folderID string, queryOverride string) ([]RemoteFile, error) {
	query := queryOverride
	if query == "" {
		query = "trashed=false"
		if folderID != "" {
			query = fmt.Sprintf("'%s' in parents and trashed=false", folderID)
		}
	}

	var files []RemoteFile
	pageToken := ""
	for {
		call := c.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id,name,mimeType,modifiedTime,size,webViewLink)").
			PageSize(listPageSize).
			Spaces("drive").
			Corpora("allDrives").
			IncludeItemsFromAllDrives(true).
			SupportsAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Do()
		if err != nil {
			c.logger.Error("failed to list drive files", "query", query, "err", err.Error())
			return nil, fmt.Errorf("failed to list drive files: %w", err)
		}

		for _, f := range result.Files {
			files = append(files, RemoteFile{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				ModifiedTime: f.ModifiedTime,
				Size:         f.Size,
				ViewLink:     f.WebViewLink,
			})
		}

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return files, nil
}

// ListChildren restricts listing to the direct children of a folder.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]RemoteFile, error) {
	return c.List(ctx, "", fmt.Sprintf("'%s' in parents and trashed=false", folderID))
}

// ListSharedWithMe lists files shared with the authenticated user.
func (c *Client) ListSharedWithMe(ctx context.Context) ([]RemoteFile, error) {
	return c.List(ctx, "", "sharedWithMe and trashed=false")
}

// Download fetches a file's binary content into a temp file and returns its
// path. The caller owns the temp file.
func (c *Client) Download(ctx context.Context, fileID string) (string, error) {
	resp, err := c.service.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", fileID, err)
	}

	return c.writeTempFile(fileID+".bin", resp)
}

// Export materializes a native Google file as the given interchange format
// and returns the temp file path.
func (c *Client) Export(ctx context.Context, fileID string, exportMime string) (string, error) {
	resp, err := c.service.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("failed to export file %s: %w", fileID, err)
	}

	return c.writeTempFile(fileID+".export", resp)
}

func (c *Client) writeTempFile(name string, resp *http.Response) (string, error) {
	defer resp.Body.Close()

	if err := os.MkdirAll(c.tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	path := filepath.Join(c.tempDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return path, nil
}
