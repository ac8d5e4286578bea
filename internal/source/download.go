package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/facefind/internal/archive"
)

const (
	DefaultWorkers = 5
	DefaultTimeout = 30 * time.Second
)

type DownloadOptions struct {
	Workers int
	Timeout time.Duration
	Logger  *slog.Logger
	// OnFile is called after every attempt, successful or not.
	OnFile func(done, total int)
}

type FailedFetch struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type DownloadResult struct {
	Paths  []string
	Failed []FailedFetch
}

// Download fetches files into dest with a bounded pool of workers. Each file
// gets its own deadline and a distinct local name. Individual failures are
// logged and reported in the result; an error is returned only when the
// context ends or files were listed but none arrived.
func Download(ctx context.Context, src Source, files []RemoteFile, dest string, opts DownloadOptions) (DownloadResult, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return DownloadResult{}, fmt.Errorf("create download dir: %w", err)
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	localNames := archive.EntryNames(names)

	paths := make([]string, len(files))
	errs := make([]error, len(files))
	var done atomic.Int32

	var g errgroup.Group
	g.SetLimit(opts.Workers)

	for i, f := range files {
		g.Go(func() error {
			target := filepath.Join(dest, localNames[i])
			if err := fetch(ctx, src, f, target, opts.Timeout); err != nil {
				errs[i] = err
				opts.Logger.Warn("download failed", "file", f.Name, "id", f.ID, "error", err)
			} else {
				paths[i] = target
			}
			if opts.OnFile != nil {
				opts.OnFile(int(done.Add(1)), len(files))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return DownloadResult{}, fmt.Errorf("download cancelled: %w", err)
	}

	var res DownloadResult
	for i := range files {
		if errs[i] != nil {
			res.Failed = append(res.Failed, FailedFetch{Name: files[i].Name, Error: errs[i].Error()})
			continue
		}
		res.Paths = append(res.Paths, paths[i])
	}

	if len(files) > 0 && len(res.Paths) == 0 {
		return res, fmt.Errorf("%w: %d of %d failed", ErrNothingFetched, len(res.Failed), len(files))
	}
	return res, nil
}

func fetch(ctx context.Context, src Source, f RemoteFile, target string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rc, err := src.Open(ctx, f)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	_, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		if copyErr != nil {
			return fmt.Errorf("copy %s: %w", f.Name, copyErr)
		}
		return fmt.Errorf("write %s: %w", f.Name, closeErr)
	}
	return nil
}
