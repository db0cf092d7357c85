package drive

import (
	"errors"
	"strings"
)

// ErrNotAuthenticated is returned when no usable OAuth credential is
// available. Obtaining one is handled outside this engine.
var ErrNotAuthenticated = errors.New("drive not authenticated")

// MIME types specific to native Google files, which have no binary form and
// must be exported before extraction.
const (
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	mimeTypeNativePrefix = "application/vnd.google-apps"

	ExportMimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ExportMimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ExportMimePDF  = "application/pdf"
	ExportMimeText = "text/plain"
)

// RemoteFile describes one file as listed by the remote store.
type RemoteFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	ModifiedTime string `json:"modified_time"`
	Size         int64  `json:"size"`
	ViewLink     string `json:"view_link"`
}

func (f RemoteFile) IsFolder() bool {
	return f.MimeType == MimeTypeFolder
}

// IsNative reports whether the file is a native Google type that needs an
// export step instead of a direct download.
func (f RemoteFile) IsNative() bool {
	return strings.HasPrefix(f.MimeType, mimeTypeNativePrefix)
}

// ExportMimeFor maps a native Google type to the interchange format it is
// materialized as before extraction.
func ExportMimeFor(nativeMime string) string {
	switch {
	case strings.Contains(nativeMime, "spreadsheet"):
		return ExportMimeXLSX
	case strings.Contains(nativeMime, "document"):
		return ExportMimeDOCX
	case strings.Contains(nativeMime, "presentation"):
		return ExportMimePDF
	default:
		return ExportMimeText
	}
}
