package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// MatchData is one matched photo of a session
type MatchData struct {
	Name string `json:"name" example:"img-0001.jpg"`
	URL  string `json:"url" example:"/v1/sessions/550e8400-e29b-41d4-a716-446655440000/photos/img-0001.jpg"`
}

// SessionResponse represents a finished session
type SessionResponse struct {
	SessionID     string      `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Method        string      `json:"method" example:"zip"`
	SourceName    string      `json:"source_name,omitempty" example:"wedding.zip"`
	Matches       []MatchData `json:"matches"`
	Message       string      `json:"message,omitempty" example:"No matching photos found."`
	Scanned       int         `json:"scanned" example:"120"`
	Skipped       int         `json:"skipped" example:"2"`
	FailedFetches int         `json:"failed_fetches" example:"0"`
	RecognitionMs int64       `json:"recognition_ms" example:"5400"`
	TotalMs       int64       `json:"total_ms" example:"6100"`
	DownloadURL   string      `json:"download_url,omitempty" example:"/v1/sessions/550e8400-e29b-41d4-a716-446655440000/archive"`
	ArchiveSize   int64       `json:"archive_size,omitempty" example:"734003"`
	CreatedAt     string      `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// ProgressEvent is a websocket message
type ProgressEvent struct {
	SessionID string `json:"session_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Type      string `json:"type" example:"match.progress"`
	Timestamp string `json:"timestamp" example:"2024-01-01T00:00:00Z"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facefind API",
		Version:     "v1.0.0",
		Description: "Finds the photos in a ZIP upload, Google Drive folder or S3 prefix that contain the face in a reference photo",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/sessions
		endpoint.New(
			endpoint.POST,
			"/sessions",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Find matching photos"),
			endpoint.WithDescription("Multipart form. Fields: image (reference photo, JPEG or PNG), method (zip, drive or s3), archive (ZIP file, method=zip), link (folder link, method=drive or s3), session_id (optional UUID, lets a websocket subscribe before the upload starts). A reference without a face or a run without matches returns 200 with an empty match list and a message."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "METHOD_NOT_ENABLED", Message: "Input method is not enabled on this server"}, "403", "Forbidden"),
				response.New(ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "Request Entity Too Large"}, "413", "Payload Too Large"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_ARCHIVE", Message: "Invalid or corrupted ZIP archive"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INVALID_LINK", Message: "Folder link could not be parsed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "NO_CANDIDATES", Message: "No photos could be obtained from the source"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
				response.New(ErrorResponse{Code: "SOURCE_UNAVAILABLE", Message: "Failed to fetch photos from the remote folder"}, "502", "Bad Gateway"),
				response.New(ErrorResponse{Code: "RECOGNITION_UNAVAILABLE", Message: "Face recognition backend is unavailable"}, "503", "Service Unavailable"),
			}),
		),

		// GET /v1/sessions/:id
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get a finished session"),
			endpoint.WithDescription("Returns the summary of a session while its results are retained"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session ID (UUID)"))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session found"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found or expired"}, "404", "Not Found"),
			}),
		),

		// GET /v1/sessions/:id/archive
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}/archive",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Download matching photos"),
			endpoint.WithDescription("Returns matched_<id>.zip with every matching photo"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("application/zip")}),
			endpoint.WithParams(parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session ID (UUID)"))),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found or expired"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "NOT_FOUND", Message: "Resource not found"}, "404", "Not Found"),
			}),
		),

		// GET /v1/sessions/:id/photos/:name
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}/photos/{name}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get one matching photo"),
			endpoint.WithProduce([]mime.MIME{mime.MIME("image/jpeg"), mime.MIME("image/png")}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session ID (UUID)")),
				parameter.StrParam("name", parameter.Path, parameter.WithDescription("Photo name as listed in matches")),
			),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Session not found or expired"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "PHOTO_NOT_FOUND", Message: "Photo not found in session results"}, "404", "Not Found"),
			}),
		),

		// GET /v1/ws
		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Progress"),
			endpoint.WithSummary("Session progress stream"),
			endpoint.WithDescription("WebSocket. Emits session.started, candidates.ready, match.progress, session.completed and session.failed for the given session_id"),
			endpoint.WithParams(
				parameter.StrParam("session_id", parameter.Query, parameter.WithDescription("Session ID (UUID) to follow")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ProgressEvent{}, "101", "Switching Protocols"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "session_id must be a UUID"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
