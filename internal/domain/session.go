package domain

import (
	"time"

	"github.com/google/uuid"
)

// Method is the way candidate photos reach a session.
type Method string

const (
	MethodZip   Method = "zip"
	MethodDrive Method = "drive"
	MethodS3    Method = "s3"
)

// Valid reports whether m is a known input method.
func (m Method) Valid() bool {
	switch m {
	case MethodZip, MethodDrive, MethodS3:
		return true
	}
	return false
}

// Label is the human-readable method name used in notifications.
func (m Method) Label() string {
	switch m {
	case MethodZip:
		return "ZIP Upload"
	case MethodDrive:
		return "Google Drive"
	case MethodS3:
		return "S3"
	}
	return string(m)
}

// Match is one candidate photo judged to contain the reference face.
type Match struct {
	Name string `json:"name"`
	Path string `json:"-"`
}

// Session is the outcome of a single find-my-photos request. Only this summary
// outlives the request; photos and face encodings never do.
type Session struct {
	ID            uuid.UUID     `json:"id"`
	Method        Method        `json:"method"`
	SourceName    string        `json:"source_name,omitempty"`
	Matches       []Match       `json:"matches"`
	Reason        string        `json:"reason,omitempty"`
	Scanned       int           `json:"scanned"`
	Skipped       int           `json:"skipped"`
	Downloaded    int           `json:"downloaded,omitempty"`
	FailedFetches int           `json:"failed_fetches,omitempty"`
	Recognition   time.Duration `json:"-"`
	Total         time.Duration `json:"-"`
	ArchiveSize   int64         `json:"archive_size,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// HasMatches reports whether the session produced a downloadable result.
func (s *Session) HasMatches() bool {
	return len(s.Matches) > 0
}
