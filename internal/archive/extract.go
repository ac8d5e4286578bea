package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Limits bound what an uploaded archive may expand to. Zero disables a limit.
type Limits struct {
	MaxEntries int
	MaxBytes   int64
}

// Extract expands the zip in r into dest, keeping its directory layout, and
// returns the number of regular files written. Symlinks are skipped. Entries
// that would land outside dest abort the extraction.
func Extract(r io.ReaderAt, size int64, dest string, limits Limits) (int, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	if limits.MaxEntries > 0 && len(zr.File) > limits.MaxEntries {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooManyEntries, len(zr.File), limits.MaxEntries)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	var written int
	var total int64
	for _, f := range zr.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return written, err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("create dir %s: %w", f.Name, err)
			}
			continue
		case mode&os.ModeSymlink != 0, !mode.IsRegular():
			continue
		}

		budget := int64(-1)
		if limits.MaxBytes > 0 {
			budget = limits.MaxBytes - total
		}

		n, err := extractFile(f, target, budget)
		total += n
		if err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if budget >= 0 && f.UncompressedSize64 > uint64(budget) {
		return 0, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", f.Name, err)
	}

	// The header size can lie; cap the copy at the remaining budget.
	var src io.Reader = rc
	if budget >= 0 {
		src = io.LimitReader(rc, budget+1)
	}

	n, copyErr := io.Copy(out, src)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		return n, fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, f.Name, copyErr)
	case closeErr != nil:
		return n, fmt.Errorf("write %s: %w", f.Name, closeErr)
	case budget >= 0 && n > budget:
		return n, fmt.Errorf("%w: %s", ErrTooLarge, f.Name)
	}
	return n, nil
}

// safeJoin resolves name under root, rejecting absolute and parent-escaping
// paths. Only directory entries may resolve to root itself.
func safeJoin(root, name string) (string, error) {
	clean := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(clean, "/") || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	target := filepath.Join(root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if rel == "." && !strings.HasSuffix(clean, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}

// IsArchiveError reports whether err came from a malformed or rejected upload
// rather than the local filesystem.
func IsArchiveError(err error) bool {
	return errors.Is(err, ErrInvalidArchive) ||
		errors.Is(err, ErrUnsafePath) ||
		errors.Is(err, ErrTooManyEntries) ||
		errors.Is(err, ErrTooLarge)
}
