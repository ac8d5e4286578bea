package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/klauspost/compress/zip"
)

// Create writes a flat zip of paths to w and returns the entry name chosen
// for each path, in order. Names are slugified; collisions get -2, -3, ...
func Create(w io.Writer, paths []string) ([]string, error) {
	zw := zip.NewWriter(w)
	names := EntryNames(paths)

	for i, path := range paths {
		if err := addFile(zw, path, names[i]); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return names, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header %s: %w", path, err)
	}
	hdr.Name = name
	// Photos are already compressed.
	hdr.Method = zip.Store

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

// EntryNames maps each path to a unique, slugified base name that keeps the
// original extension.
func EntryNames(paths []string) []string {
	seen := make(map[string]int, len(paths))
	names := make([]string, len(paths))

	for i, p := range paths {
		base := filepath.Base(p)
		ext := strings.ToLower(filepath.Ext(base))
		stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
		if stem == "" {
			stem = "photo"
		}

		name := stem + ext
		seen[name]++
		if n := seen[name]; n > 1 {
			name = stem + "-" + strconv.Itoa(n) + ext
			for seen[name] > 0 {
				n++
				name = stem + "-" + strconv.Itoa(n) + ext
			}
			seen[name]++
		}
		names[i] = name
	}
	return names
}
