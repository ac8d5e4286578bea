package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facefind/internal/archive"
	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio"
	"github.com/saturnino-fabrica-de-software/facefind/internal/matcher"
	"github.com/saturnino-fabrica-de-software/facefind/internal/notify"
	"github.com/saturnino-fabrica-de-software/facefind/internal/provider"
	"github.com/saturnino-fabrica-de-software/facefind/internal/repository"
	"github.com/saturnino-fabrica-de-software/facefind/internal/source"
	"github.com/saturnino-fabrica-de-software/facefind/internal/store"
	"github.com/saturnino-fabrica-de-software/facefind/internal/ws"
)

// SourceResolver turns a shared-folder link into a Source.
type SourceResolver func(link string) (source.Source, error)

type SessionRecorder interface {
	Create(ctx context.Context, rec *repository.SessionRecord) error
}

type EventPublisher interface {
	Publish(sessionID uuid.UUID, eventType ws.EventType, data interface{})
}

type NotificationSender interface {
	Send(e notify.Event)
}

// Request is one find-my-photos submission. Archive fields are used by
// MethodZip, Link by the remote methods.
type Request struct {
	SessionID   uuid.UUID
	Method      domain.Method
	Reference   []byte
	Archive     io.ReaderAt
	ArchiveSize int64
	ArchiveName string
	Link        string
}

type SessionConfig struct {
	WorkDir string
	Limits  archive.Limits
	Workers int
	Timeout time.Duration
}

type SessionService struct {
	cfg      SessionConfig
	matcher  *matcher.Matcher
	results  *store.Store
	sources  map[domain.Method]SourceResolver
	recorder SessionRecorder
	events   EventPublisher
	notifier NotificationSender
	logger   *slog.Logger
}

func NewSessionService(cfg SessionConfig, m *matcher.Matcher, results *store.Store, logger *slog.Logger) *SessionService {
	return &SessionService{
		cfg:     cfg,
		matcher: m,
		results: results,
		sources: make(map[domain.Method]SourceResolver),
		logger:  logger,
	}
}

// WithSource enables a remote input method.
func (s *SessionService) WithSource(method domain.Method, resolve SourceResolver) *SessionService {
	s.sources[method] = resolve
	return s
}

func (s *SessionService) WithRecorder(r SessionRecorder) *SessionService {
	s.recorder = r
	return s
}

func (s *SessionService) WithEvents(p EventPublisher) *SessionService {
	s.events = p
	return s
}

func (s *SessionService) WithNotifier(n NotificationSender) *SessionService {
	s.notifier = n
	return s
}

// MethodEnabled reports whether requests for m can be served.
func (s *SessionService) MethodEnabled(m domain.Method) bool {
	if m == domain.MethodZip {
		return true
	}
	_, ok := s.sources[m]
	return ok
}

// Run executes a whole session inside a private workspace that is removed
// before Run returns, whatever the outcome. No-face and no-match outcomes
// are reported through Session.Reason.
func (s *SessionService) Run(ctx context.Context, req Request) (*domain.Session, error) {
	start := time.Now()

	if err := s.validate(req); err != nil {
		return nil, err
	}

	id := req.SessionID
	if id == uuid.Nil {
		id = uuid.New()
	}

	session := &domain.Session{
		ID:         id,
		Method:     req.Method,
		SourceName: req.ArchiveName,
		Matches:    []domain.Match{},
		CreatedAt:  start.UTC(),
	}
	if req.Method != domain.MethodZip {
		session.SourceName = req.Link
	}

	logger := s.logger.With("session_id", id, "method", req.Method)

	workspace := filepath.Join(s.cfg.WorkDir, "session-"+id.String())
	if err := os.MkdirAll(workspace, 0o700); err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("create workspace: %w", err))
	}

	var once sync.Once
	var cleanedUp bool
	cleanup := func() {
		once.Do(func() {
			if err := os.RemoveAll(workspace); err != nil {
				logger.Error("cleanup error", "workspace", workspace, "error", err)
				return
			}
			cleanedUp = true
		})
	}
	defer cleanup()

	s.publish(id, ws.EventSessionStarted, ws.StartedData{Method: string(req.Method)})

	archivePath, err := s.run(ctx, req, session, workspace, logger)
	if err != nil {
		s.publishFailure(id, err)
		return nil, err
	}

	cleanup()
	session.Total = time.Since(start)
	s.results.Put(session, archivePath)

	logger.Info("session completed",
		"scanned", session.Scanned,
		"matches", len(session.Matches),
		"skipped", session.Skipped,
		"failed_fetches", session.FailedFetches,
		"recognition_ms", session.Recognition.Milliseconds(),
		"total_ms", session.Total.Milliseconds(),
	)

	s.publish(id, ws.EventSessionCompleted, ws.CompletedData{Matches: len(session.Matches), Reason: session.Reason})

	if s.notifier != nil {
		s.notifier.Send(notify.EventFromSession(session, cleanedUp))
	}

	if s.recorder != nil {
		if err := s.recorder.Create(ctx, repository.RecordFromSession(session)); err != nil {
			logger.Warn("record session failed", "error", err)
		}
	}

	return session, nil
}

// run fills session and returns the path of the result archive, empty when
// nothing matched.
func (s *SessionService) run(ctx context.Context, req Request, session *domain.Session, workspace string, logger *slog.Logger) (string, error) {
	referencePath, err := saveReference(workspace, req.Reference)
	if err != nil {
		return "", err
	}

	photos := filepath.Join(workspace, "photos")
	if err := s.collect(ctx, req, session, photos, logger); err != nil {
		return "", err
	}

	recognitionStart := time.Now()
	result, err := s.matcher.MatchWithProgress(ctx, referencePath, photos, func(p matcher.Progress) {
		s.publish(session.ID, ws.EventMatchProgress, ws.ProgressData{
			Processed: p.Processed,
			Total:     p.Total,
			Matched:   p.Matched,
		})
	})
	session.Recognition = time.Since(recognitionStart)
	if err != nil {
		return "", mapMatchError(err)
	}

	session.Reason = result.Reason
	session.Scanned = result.Scanned
	session.Skipped = len(result.Skipped)

	if len(result.Matches) == 0 {
		return "", nil
	}

	return s.storeMatches(session, result.Matches)
}

// collect fills dir with the session's candidate photos.
func (s *SessionService) collect(ctx context.Context, req Request, session *domain.Session, dir string, logger *slog.Logger) error {
	if req.Method == domain.MethodZip {
		n, err := archive.Extract(req.Archive, req.ArchiveSize, dir, s.cfg.Limits)
		if err != nil {
			if archive.IsArchiveError(err) {
				return domain.ErrInvalidArchive.WithError(err)
			}
			return domain.ErrInternal.WithError(err)
		}
		logger.Debug("archive extracted", "files", n)
		s.publish(session.ID, ws.EventCandidatesReady, ws.CandidatesData{Total: n})
		return nil
	}

	src, err := s.sources[req.Method](req.Link)
	if err != nil {
		return mapSourceError(err)
	}

	listed, err := src.List(ctx)
	if err != nil {
		return mapSourceError(err)
	}

	files := make([]source.RemoteFile, 0, len(listed))
	for _, f := range listed {
		if imageio.IsCandidate(f.Name) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return domain.ErrNoCandidates
	}

	res, err := source.Download(ctx, src, files, dir, source.DownloadOptions{
		Workers: s.cfg.Workers,
		Timeout: s.cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return mapSourceError(err)
	}

	session.Downloaded = len(res.Paths)
	session.FailedFetches = len(res.Failed)
	logger.Debug("remote photos downloaded", "listed", len(files), "downloaded", len(res.Paths), "failed", len(res.Failed))
	s.publish(session.ID, ws.EventCandidatesReady, ws.CandidatesData{Total: len(res.Paths), FailedFetches: len(res.Failed)})
	return nil
}

// storeMatches packs matched photos into the session archive, which lives in
// the result store's directory and outlives the workspace.
func (s *SessionService) storeMatches(session *domain.Session, paths []string) (string, error) {
	target := s.results.ArchivePath(session.ID)

	f, err := os.Create(target)
	if err != nil {
		return "", domain.ErrInternal.WithError(fmt.Errorf("create result archive: %w", err))
	}

	names, err := archive.Create(f, paths)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return "", domain.ErrInternal.WithError(fmt.Errorf("write result archive: %w", err))
	}

	if info, err := os.Stat(target); err == nil {
		session.ArchiveSize = info.Size()
	}

	for i, p := range paths {
		session.Matches = append(session.Matches, domain.Match{Name: names[i], Path: p})
	}

	return target, nil
}

// Result returns a finished session still held by the result store.
func (s *SessionService) Result(id uuid.UUID) (*store.Entry, error) {
	entry, err := s.results.Get(id)
	if err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return entry, nil
}

// Photo opens one matched photo of a finished session.
func (s *SessionService) Photo(id uuid.UUID, name string) (*store.Photo, error) {
	photo, err := s.results.OpenPhoto(id, name)
	switch {
	case err == nil:
		return photo, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, domain.ErrSessionNotFound
	case errors.Is(err, store.ErrPhotoNotFound), errors.Is(err, store.ErrNoArchive):
		return nil, domain.ErrPhotoNotFound
	default:
		return nil, domain.ErrInternal.WithError(err)
	}
}

func (s *SessionService) validate(req Request) error {
	if !req.Method.Valid() {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("unknown method %q", req.Method))
	}
	if !s.MethodEnabled(req.Method) {
		return domain.ErrMethodNotEnabled.WithError(fmt.Errorf("method %s", req.Method))
	}
	if len(req.Reference) == 0 {
		return domain.ErrValidationFailed.WithError(errors.New("reference image is required"))
	}
	if _, err := imageio.Sniff(req.Reference); err != nil {
		return domain.ErrInvalidImage.WithError(err)
	}

	switch req.Method {
	case domain.MethodZip:
		if req.Archive == nil || req.ArchiveSize <= 0 {
			return domain.ErrValidationFailed.WithError(errors.New("archive is required"))
		}
	default:
		if req.Link == "" {
			return domain.ErrValidationFailed.WithError(errors.New("link is required"))
		}
	}
	return nil
}

func saveReference(workspace string, data []byte) (string, error) {
	ext := ".jpg"
	if mime, _ := imageio.Sniff(data); mime == "image/png" {
		ext = ".png"
	}

	path := filepath.Join(workspace, "reference"+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", domain.ErrInternal.WithError(fmt.Errorf("save reference: %w", err))
	}
	return path, nil
}

func (s *SessionService) publish(id uuid.UUID, t ws.EventType, data interface{}) {
	if s.events != nil {
		s.events.Publish(id, t, data)
	}
}

func (s *SessionService) publishFailure(id uuid.UUID, err error) {
	data := ws.FailedData{Code: domain.ErrInternal.Code, Message: domain.ErrInternal.Message}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		data = ws.FailedData{Code: appErr.Code, Message: appErr.Message}
	}
	s.publish(id, ws.EventSessionFailed, data)
}

func mapMatchError(err error) error {
	var appErr *domain.AppError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, imageio.ErrUnsupportedImage), errors.Is(err, imageio.ErrCorruptImage):
		return domain.ErrInvalidImage.WithError(err)
	case errors.Is(err, provider.ErrBackendUnavailable):
		return domain.ErrRecognitionUnavailable.WithError(err)
	}
	return domain.ErrInternal.WithError(err)
}

func mapSourceError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, source.ErrInvalidLink):
		return domain.ErrInvalidLink.WithError(err)
	case errors.Is(err, source.ErrFolderNotFound), errors.Is(err, source.ErrAccessDenied):
		return domain.ErrSourceUnavailable.WithError(err)
	case errors.Is(err, source.ErrNothingFetched):
		return domain.ErrNoCandidates.WithError(err)
	}
	return domain.ErrSourceUnavailable.WithError(err)
}
