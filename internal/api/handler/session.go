package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/saturnino-fabrica-de-software/facefind/internal/domain"
	"github.com/saturnino-fabrica-de-software/facefind/internal/service"
	"github.com/saturnino-fabrica-de-software/facefind/internal/store"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	// some clients send no specific type; the service sniffs the bytes
	"application/octet-stream": true,
}

// SessionService is implemented by *service.SessionService
type SessionService interface {
	Run(ctx context.Context, req service.Request) (*domain.Session, error)
	Result(id uuid.UUID) (*store.Entry, error)
	Photo(id uuid.UUID, name string) (*store.Photo, error)
	MethodEnabled(m domain.Method) bool
}

// SessionHandler handles find-my-photos sessions
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger,
	}
}

// MatchResponse is one matching photo with the URL it can be fetched from
type MatchResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SessionResponse response for session endpoints
type SessionResponse struct {
	SessionID     string          `json:"session_id"`
	Method        string          `json:"method"`
	SourceName    string          `json:"source_name,omitempty"`
	Matches       []MatchResponse `json:"matches"`
	Message       string          `json:"message,omitempty"`
	Scanned       int             `json:"scanned"`
	Skipped       int             `json:"skipped"`
	FailedFetches int             `json:"failed_fetches"`
	RecognitionMs int64           `json:"recognition_ms"`
	TotalMs       int64           `json:"total_ms"`
	DownloadURL   string          `json:"download_url,omitempty"`
	ArchiveSize   int64           `json:"archive_size,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// Create POST /v1/sessions - run a session and return its matches
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	// 1. Method
	method := domain.Method(strings.ToLower(strings.TrimSpace(c.FormValue("method"))))
	if method == "" {
		method = domain.MethodZip
	}
	if !method.Valid() {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("unknown method %q", method))
	}
	if !h.service.MethodEnabled(method) {
		return domain.ErrMethodNotEnabled
	}

	// 2. Optional client-chosen session id
	var sessionID uuid.UUID
	if raw := strings.TrimSpace(c.FormValue("session_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.ErrValidationFailed.WithError(errors.New("session_id must be a UUID"))
		}
		sessionID = id
	}

	// 3. Reference image
	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	req := service.Request{
		SessionID: sessionID,
		Method:    method,
		Reference: imageBytes,
	}

	// 4. Candidate source
	if method == domain.MethodZip {
		file, err := c.FormFile("archive")
		if err != nil {
			return domain.ErrValidationFailed.WithError(errors.New("archive is required"))
		}
		f, err := file.Open()
		if err != nil {
			return domain.ErrInvalidArchive.WithError(err)
		}
		defer func() {
			_ = f.Close()
		}()

		req.Archive = f
		req.ArchiveSize = file.Size
		req.ArchiveName = filepath.Base(file.Filename)
	} else {
		req.Link = strings.TrimSpace(c.FormValue("link"))
		if req.Link == "" {
			return domain.ErrValidationFailed.WithError(errors.New("link is required"))
		}
	}

	// 5. Run
	session, err := h.service.Run(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(toSessionResponse(session))
}

// Get GET /v1/sessions/:id - summary of a finished session
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	entry, err := h.service.Result(id)
	if err != nil {
		return err
	}

	return c.JSON(toSessionResponse(entry.Session))
}

// Archive GET /v1/sessions/:id/archive - zip of every matching photo
func (h *SessionHandler) Archive(c *fiber.Ctx) error {
	id, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	entry, err := h.service.Result(id)
	if err != nil {
		return err
	}
	if entry.ArchivePath == "" {
		return domain.ErrNotFound.WithError(errors.New("session has no matching photos"))
	}

	return c.Download(entry.ArchivePath, store.ArchiveName(id))
}

// Photo GET /v1/sessions/:id/photos/:name - one matching photo
func (h *SessionHandler) Photo(c *fiber.Ctx) error {
	id, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || name == "" {
		return domain.ErrPhotoNotFound
	}

	photo, err := h.service.Photo(id, name)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, contentTypeFor(photo.Name))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", photo.Name))
	return c.SendStream(photo, int(photo.Size))
}

func sessionIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrValidationFailed.WithError(errors.New("session id must be a UUID"))
	}
	return id, nil
}

// extractAndValidateImage extracts and validates the reference image from the form
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	// 1. Extract file
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	// 2. Validate size
	if file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image larger than %d bytes", maxImageSize))
	}

	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(errors.New("empty image"))
	}

	// 3. Validate Content-Type
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported content type %q", contentType))
	}

	// 4. Read image bytes
	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}

func toSessionResponse(s *domain.Session) SessionResponse {
	id := s.ID.String()
	resp := SessionResponse{
		SessionID:     id,
		Method:        string(s.Method),
		SourceName:    s.SourceName,
		Matches:       make([]MatchResponse, 0, len(s.Matches)),
		Message:       s.Reason,
		Scanned:       s.Scanned,
		Skipped:       s.Skipped,
		FailedFetches: s.FailedFetches,
		RecognitionMs: s.Recognition.Milliseconds(),
		TotalMs:       s.Total.Milliseconds(),
		ArchiveSize:   s.ArchiveSize,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
	}

	for _, m := range s.Matches {
		resp.Matches = append(resp.Matches, MatchResponse{
			Name: m.Name,
			URL:  "/v1/sessions/" + id + "/photos/" + url.PathEscape(m.Name),
		})
	}
	if s.HasMatches() {
		resp.DownloadURL = "/v1/sessions/" + id + "/archive"
	}

	return resp
}

func contentTypeFor(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	if kind := filetype.GetType(ext); kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return fiber.MIMEOctetStream
}
