// Package files stores user uploads grouped into sessions. Blobs live in
// the configured storage backend under {session}/{fileID}{ext} and each
// file has a metadata row in uploaded_files.
package files

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is the stored metadata of one upload.
type File struct {
	ID          uuid.UUID `json:"file_id"`
	SessionID   string    `json:"session_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size"`
	PageCount   *int      `json:"page_count,omitempty"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// Upload is one file received in a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Entry is a file with a freshly issued download URL.
type Entry struct {
	File
	URL string `json:"url"`
}

// Session lists the files uploaded under one session id.
type Session struct {
	SessionID string  `json:"session_id"`
	Files     []Entry `json:"files"`
}

// Link is a download URL for a single file. ExpiresIn is empty for URLs
// served by this service.
type Link struct {
	FileID    uuid.UUID `json:"file_id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresIn string    `json:"expires_in,omitempty"`
}

// DeleteResult reports how many stored files a session delete removed.
type DeleteResult struct {
	Success bool   `json:"success"`
	Deleted int    `json:"deleted"`
	Message string `json:"message"`
}

var (
	sessionPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	extensionPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// ValidSession reports whether s can be used as a storage key segment.
func ValidSession(s string) bool {
	return sessionPattern.MatchString(s)
}

// StorageKey builds the blob key for a file. Extensions that are not short
// alphanumeric suffixes are dropped.
func StorageKey(session string, id uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extensionPattern.MatchString(ext) {
		ext = ""
	}
	return session + "/" + id.String() + ext
}
