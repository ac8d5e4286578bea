package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Is matches on Code so wrapped copies created by WithError still satisfy errors.Is
// against the predefined value.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrSessionNotFound = &AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Session not found or expired",
		StatusCode: 404,
	}

	ErrPhotoNotFound = &AppError{
		Code:       "PHOTO_NOT_FOUND",
		Message:    "Photo not found in session results",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrInvalidArchive = &AppError{
		Code:       "INVALID_ARCHIVE",
		Message:    "Invalid or corrupted ZIP archive",
		StatusCode: 422,
	}

	ErrInvalidLink = &AppError{
		Code:       "INVALID_LINK",
		Message:    "Folder link could not be parsed",
		StatusCode: 422,
	}

	ErrSourceUnavailable = &AppError{
		Code:       "SOURCE_UNAVAILABLE",
		Message:    "Failed to fetch photos from the remote folder",
		StatusCode: 502,
	}

	ErrNoCandidates = &AppError{
		Code:       "NO_CANDIDATES",
		Message:    "No photos could be obtained from the source",
		StatusCode: 422,
	}

	ErrMethodNotEnabled = &AppError{
		Code:       "METHOD_NOT_ENABLED",
		Message:    "Input method is not enabled on this server",
		StatusCode: 403,
	}

	ErrRecognitionUnavailable = &AppError{
		Code:       "RECOGNITION_UNAVAILABLE",
		Message:    "Face recognition backend is unavailable",
		StatusCode: 503,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}
)
