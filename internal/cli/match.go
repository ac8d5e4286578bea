package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facefind/internal/archive"
	"github.com/saturnino-fabrica-de-software/facefind/internal/config"
	"github.com/saturnino-fabrica-de-software/facefind/internal/face"
	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio"
	"github.com/saturnino-fabrica-de-software/facefind/internal/matcher"
)

// MatchOutput is the --json output of the match command
type MatchOutput struct {
	Reference string                `json:"reference"`
	Scanned   int                   `json:"scanned"`
	Matches   []string              `json:"matches"`
	Reason    string                `json:"reason,omitempty"`
	Skipped   []matcher.SkippedFile `json:"skipped,omitempty"`
	Archive   string                `json:"archive,omitempty"`
}

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find photos containing the reference face",
		Long: `Find every photo in a folder or ZIP file that contains the face in the
reference photo. Only JPEG and PNG files are considered.

Examples:
  # Scan a folder
  facefind match --reference me.jpg --dir ./wedding

  # Scan a ZIP file and collect the matches into a new ZIP
  facefind match --reference me.jpg --zip wedding.zip --out mine.zip

  # Use the DeepFace service with a stricter threshold
  facefind match --reference me.jpg --dir ./wedding --provider deepface --threshold 0.7`,
		Args: cobra.NoArgs,
		RunE: runMatch,
	}

	cmd.Flags().String("reference", "", "Photo of the face to look for (JPEG or PNG)")
	cmd.Flags().String("dir", "", "Folder of candidate photos, searched recursively")
	cmd.Flags().String("zip", "", "ZIP file of candidate photos")
	cmd.Flags().String("provider", "", "Face provider: dlib, deepface or mock (default from FACE_PROVIDER)")
	cmd.Flags().Float64("threshold", 0, "Minimum similarity for a match, 0 uses MATCH_THRESHOLD")
	cmd.Flags().String("out", "", "Write the matching photos to this ZIP file")
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Bool("quiet", false, "Hide the progress bar")
	_ = cmd.MarkFlagRequired("reference")
	cmd.MarkFlagsMutuallyExclusive("dir", "zip")
	cmd.MarkFlagsOneRequired("dir", "zip")

	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reference := mustGetString(cmd, "reference")
	dir := mustGetString(cmd, "dir")
	zipPath := mustGetString(cmd, "zip")
	outPath := mustGetString(cmd, "out")
	asJSON := mustGetBool(cmd, "json")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if p := mustGetString(cmd, "provider"); p != "" {
		cfg.FaceProvider = p
	}
	if t := mustGetFloat64(cmd, "threshold"); t != 0 {
		if t < 0 || t > 1 {
			return fmt.Errorf("--threshold must be in (0, 1], got %v", t)
		}
		cfg.MatchThreshold = t
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	logger := config.NewLoggerTo(cmd.ErrOrStderr(), cfg.Environment, cfg.LogLevel)

	if _, err := os.Stat(reference); err != nil {
		return fmt.Errorf("reference photo: %w", err)
	}

	faceProvider, err := face.NewFaceProvider(cfg)
	if err != nil {
		return err
	}
	if c, ok := faceProvider.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	// A ZIP is expanded into a temporary folder that is removed on exit
	if zipPath != "" {
		tmp, err := os.MkdirTemp("", "facefind-")
		if err != nil {
			return fmt.Errorf("create temp dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()

		n, err := extractZip(zipPath, tmp, archive.Limits{
			MaxEntries: cfg.MaxArchiveEntries,
			MaxBytes:   cfg.MaxArchiveBytes,
		})
		if err != nil {
			return err
		}
		logger.Debug("archive extracted", "files", n, "dir", tmp)
		dir = tmp
	}

	m := matcher.New(faceProvider,
		matcher.WithThreshold(cfg.MatchThreshold),
		matcher.WithLoader(imageio.Loader{MaxDimension: cfg.MaxDimension}),
		matcher.WithLogger(logger),
	)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Matching faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetVisibility(!mustGetBool(cmd, "quiet") && !asJSON),
	)

	sized := false
	result, err := m.MatchWithProgress(ctx, reference, dir, func(p matcher.Progress) {
		if !sized {
			bar.ChangeMax(p.Total)
			sized = true
		}
		_ = bar.Set(p.Processed)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	out := MatchOutput{
		Reference: reference,
		Scanned:   result.Scanned,
		Matches:   relativeTo(dir, result.Matches),
		Reason:    result.Reason,
		Skipped:   result.Skipped,
	}

	var archiveSize int64
	if outPath != "" && len(result.Matches) > 0 {
		archiveSize, err = writeArchive(outPath, result.Matches)
		if err != nil {
			return err
		}
		out.Archive = outPath
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scanned %s\n", english.Plural(out.Scanned, "photo", ""))
	if out.Reason != "" {
		fmt.Fprintln(w, out.Reason)
	} else {
		fmt.Fprintf(w, "Found %s:\n", english.Plural(len(out.Matches), "matching photo", ""))
		for _, p := range out.Matches {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if len(out.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %s\n", english.Plural(len(out.Skipped), "unreadable photo", ""))
	}
	if out.Archive != "" {
		fmt.Fprintf(w, "Wrote %s (%s)\n", out.Archive, humanize.Bytes(uint64(archiveSize)))
	}
	return nil
}

func extractZip(path, dest string, limits archive.Limits) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat zip: %w", err)
	}

	n, err := archive.Extract(f, info.Size(), dest, limits)
	if err != nil {
		if archive.IsArchiveError(err) {
			return 0, fmt.Errorf("%s is not a usable ZIP file: %w", path, err)
		}
		return 0, err
	}
	return n, nil
}

func writeArchive(path string, matches []string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := archive.Create(f, matches); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return 0, err
	}

	info, statErr := f.Stat()
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	if statErr != nil {
		return 0, nil
	}
	return info.Size(), nil
}

func relativeTo(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "" {
			rel = p
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
