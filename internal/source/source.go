// Package source fetches candidate photos from remote folders into a local
// directory before matching.
package source

import (
	"context"
	"errors"
	"io"
)

// RemoteFile is one entry of a remote folder listing.
type RemoteFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}

// Source lists and opens files in one remote folder.
type Source interface {
	List(ctx context.Context) ([]RemoteFile, error)
	Open(ctx context.Context, f RemoteFile) (io.ReadCloser, error)
}

var (
	ErrInvalidLink    = errors.New("invalid folder link")
	ErrFolderNotFound = errors.New("folder not found or not shared")
	ErrAccessDenied   = errors.New("access to folder denied")
	ErrNothingFetched = errors.New("no file could be downloaded")
)
