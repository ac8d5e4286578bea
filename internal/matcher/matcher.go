// Package matcher finds the photos under a directory tree that contain the
// face shown in a reference photo.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/karrick/godirwalk"
	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
)

const (
	// DefaultThreshold is the minimum rounded similarity for a match, inclusive.
	DefaultThreshold = 0.60

	ReasonNoFace    = "No face found in the image."
	ReasonNoMatches = "No matching photos found."
)

var ErrCandidateRoot = errors.New("candidate root is not a readable directory")

// ImageLoader turns a file into bytes the face provider accepts.
type ImageLoader interface {
	Load(path string) ([]byte, error)
}

type SkippedFile struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result of one matching run. Reason is set, and Matches empty, when the
// reference has no face or nothing matched. Neither case is an error.
type Result struct {
	Matches []string
	Reason  string
	Skipped []SkippedFile
	Scanned int
}

// Progress is reported after each candidate is examined.
type Progress struct {
	Processed int
	Total     int
	Path      string
	Matched   bool
}

type ProgressFunc func(Progress)

type Matcher struct {
	provider  provider.FaceProvider
	loader    ImageLoader
	threshold float64
	logger    *slog.Logger
}

type Option func(*Matcher)

func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}

func WithLoader(loader ImageLoader) Option {
	return func(m *Matcher) {
		m.loader = loader
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

func New(p provider.FaceProvider, opts ...Option) *Matcher {
	m := &Matcher{
		provider:  p,
		loader:    imageio.Loader{},
		threshold: DefaultThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match compares every allow-listed image under candidateRoot with the first
// face found in referencePath.
func (m *Matcher) Match(ctx context.Context, referencePath, candidateRoot string) (Result, error) {
	return m.MatchWithProgress(ctx, referencePath, candidateRoot, nil)
}

func (m *Matcher) MatchWithProgress(ctx context.Context, referencePath, candidateRoot string, progress ProgressFunc) (Result, error) {
	reference, ok, err := m.referenceEncoding(ctx, referencePath)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Matches: []string{}, Reason: ReasonNoFace}, nil
	}

	candidates, err := Candidates(candidateRoot)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Matches: []string{},
		Scanned: len(candidates),
	}

	for i, path := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("match cancelled after %d of %d: %w", i, len(candidates), err)
		}

		matched, err := m.matchCandidate(ctx, reference, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, fmt.Errorf("match cancelled after %d of %d: %w", i, len(candidates), ctxErr)
			}
			m.logger.Warn("skipping candidate", "path", path, "error", err)
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Error: err.Error()})
		} else if matched {
			result.Matches = append(result.Matches, path)
		}

		if progress != nil {
			progress(Progress{
				Processed: i + 1,
				Total:     len(candidates),
				Path:      path,
				Matched:   matched,
			})
		}
	}

	if len(result.Matches) == 0 {
		result.Reason = ReasonNoMatches
	}
	return result, nil
}

func (m *Matcher) referenceEncoding(ctx context.Context, path string) (provider.Encoding, bool, error) {
	image, err := m.loader.Load(path)
	if err != nil {
		return nil, false, fmt.Errorf("load reference: %w", err)
	}

	encodings, err := m.encodeAll(ctx, image)
	if err != nil {
		return nil, false, fmt.Errorf("encode reference: %w", err)
	}
	if len(encodings) == 0 {
		return nil, false, nil
	}
	if len(encodings) > 1 {
		m.logger.Debug("reference has several faces, using the first", "faces", len(encodings))
	}
	return encodings[0], true, nil
}

// matchCandidate stops at the first face that clears the threshold.
func (m *Matcher) matchCandidate(ctx context.Context, reference provider.Encoding, path string) (bool, error) {
	image, err := m.loader.Load(path)
	if err != nil {
		return false, err
	}

	encodings, err := m.encodeAll(ctx, image)
	if err != nil {
		return false, err
	}

	for _, enc := range encodings {
		if Similarity(m.provider.Distance(reference, enc)) >= m.threshold {
			return true, nil
		}
	}
	return false, nil
}

func (m *Matcher) encodeAll(ctx context.Context, image []byte) ([]provider.Encoding, error) {
	faces, err := m.provider.DetectFaces(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}

	encodings, err := m.provider.EncodeFaces(ctx, image, faces)
	if err != nil {
		return nil, fmt.Errorf("encode faces: %w", err)
	}
	return encodings, nil
}

// Similarity converts a distance to 1 - distance rounded to two decimals.
// Rounding works on the exact binary value, so 1-0.405 (just below 0.595)
// gives 0.59.
func Similarity(distance float64) float64 {
	s, _ := strconv.ParseFloat(strconv.FormatFloat(1-distance, 'f', 2, 64), 64)
	return s
}

// Candidates lists allow-listed image files under root in lexical walk order.
// Unreadable subdirectories are skipped.
func Candidates(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCandidateRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrCandidateRoot, root)
	}

	var paths []string
	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() || !imageio.IsCandidate(osPathname) {
				return nil
			}
			if de.IsSymlink() {
				target, err := os.Stat(osPathname)
				if err != nil || !target.Mode().IsRegular() {
					return nil
				}
			} else if !de.IsRegular() {
				return nil
			}
			paths = append(paths, osPathname)
			return nil
		},
		ErrorCallback: func(string, error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}
