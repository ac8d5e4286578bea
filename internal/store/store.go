// Package store keeps finished sessions and their result archives for a short
// time so clients can fetch them after the matching request returns.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/patrickmn/go-cache"

	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
)

const archivePrefix = "matched_"

var (
	ErrNotFound      = errors.New("session not found")
	ErrPhotoNotFound = errors.New("photo not found")
	ErrNoArchive     = errors.New("session has no archive")
)

// Entry is a stored session. ArchivePath is empty when nothing matched.
type Entry struct {
	Session     *domain.Session
	ArchivePath string
}

type Store struct {
	dir    string
	items  *cache.Cache
	logger *slog.Logger
}

// New prepares dir, removes archives left behind by a previous process and
// starts the expiry janitor. Expired entries have their archive deleted.
func New(dir string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}

	s := &Store{
		dir:    dir,
		items:  cache.New(ttl, cleanupInterval(ttl)),
		logger: logger,
	}
	s.items.OnEvicted(s.evict)

	if n, err := s.sweep(); err != nil {
		logger.Warn("result sweep failed", "dir", dir, "error", err)
	} else if n > 0 {
		logger.Info("removed orphaned results", "count", n)
	}

	return s, nil
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Minute
	}
	if i := ttl / 2; i < time.Minute {
		return i
	}
	return time.Minute
}

// ArchivePath is where the archive of session id must be written before Put.
func (s *Store) ArchivePath(id uuid.UUID) string {
	return filepath.Join(s.dir, ArchiveName(id))
}

// ArchiveName is the download file name of a session archive.
func ArchiveName(id uuid.UUID) string {
	return archivePrefix + id.String() + ".zip"
}

// Put stores a copy of session, so later writes by the caller are not
// visible to readers.
func (s *Store) Put(session *domain.Session, archivePath string) {
	snapshot := *session
	snapshot.Matches = append([]domain.Match(nil), session.Matches...)
	s.items.SetDefault(session.ID.String(), &Entry{
		Session:     &snapshot,
		ArchivePath: archivePath,
	})
}

func (s *Store) Get(id uuid.UUID) (*Entry, error) {
	v, ok := s.items.Get(id.String())
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Entry), nil
}

// Delete drops the session and removes its archive.
func (s *Store) Delete(id uuid.UUID) {
	s.items.Delete(id.String())
}

func (s *Store) Len() int {
	return s.items.ItemCount()
}

// Close removes every stored archive.
func (s *Store) Close() {
	for key := range s.items.Items() {
		s.items.Delete(key)
	}
}

// Photo is one matched photo read back from a session archive.
type Photo struct {
	io.ReadCloser
	Name string
	Size int64
}

// OpenPhoto streams a single entry out of the session archive.
func (s *Store) OpenPhoto(id uuid.UUID, name string) (*Photo, error) {
	entry, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if entry.ArchivePath == "" {
		return nil, ErrNoArchive
	}

	zr, err := zip.OpenReader(entry.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		return &Photo{
			ReadCloser: &entryReader{ReadCloser: rc, archive: zr},
			Name:       f.Name,
			Size:       int64(f.UncompressedSize64),
		}, nil
	}

	_ = zr.Close()
	return nil, ErrPhotoNotFound
}

type entryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (r *entryReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.archive.Close())
}

func (s *Store) evict(key string, v interface{}) {
	entry, ok := v.(*Entry)
	if !ok || entry.ArchivePath == "" {
		return
	}
	if err := os.Remove(entry.ArchivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove expired archive", "session_id", key, "error", err)
		return
	}
	s.logger.Debug("result expired", "session_id", key)
}

// sweep deletes archives no live entry can refer to. Entries live in memory,
// so at startup that is all of them.
func (s *Store) sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), archivePrefix) || filepath.Ext(e.Name()) != ".zip" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
