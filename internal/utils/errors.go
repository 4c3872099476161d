package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrorCodeLookupFailed      ErrorCode = "LOOKUP_FAILED"
	ErrorCodeDownloadFailed    ErrorCode = "DOWNLOAD_FAILED"
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Client-facing messages. These are the only texts a failing request
// ever sees; the underlying cause is logged instead.
const (
	MsgURLRequired         = "URL is required"
	MsgURLAndFormatMissing = "URL and format ID are required"
	MsgInvalidBody         = "Invalid request body"
	MsgLookupFailed        = "Invalid URL or failed to fetch video data."
	MsgDownloadFailed      = "Download failed. The video may be region-locked or private."
	MsgMergeUnavailable    = "Download failed. This format may require merging with ffmpeg, which is not available on this deployment."
	MsgRateLimited         = "Too many requests"
	MsgInternal            = "An unexpected error occurred"
)

// AppError is an error that already knows how it should be reported to
// the HTTP client. Cause is kept for logging and never serialized.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewError(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// AsAppError returns err as an *AppError, or a generic internal error
// wrapping it.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	e := NewInternalError()
	e.Cause = err
	return e
}

func NewInvalidRequestError(message string) *AppError {
	return NewError(ErrorCodeInvalidRequest, message, http.StatusBadRequest)
}

func NewLookupError(err error) *AppError {
	e := NewError(ErrorCodeLookupFailed, MsgLookupFailed, http.StatusInternalServerError)
	e.Cause = err
	return e
}

func NewDownloadError(err error) *AppError {
	e := NewError(ErrorCodeDownloadFailed, MsgDownloadFailed, http.StatusInternalServerError)
	e.Cause = err
	return e
}

func NewMergeUnavailableError(err error) *AppError {
	e := NewError(ErrorCodeDownloadFailed, MsgMergeUnavailable, http.StatusInternalServerError)
	e.Cause = err
	return e
}

func NewRateLimitError() *AppError {
	return NewError(ErrorCodeRateLimitExceeded, MsgRateLimited, http.StatusTooManyRequests)
}

func NewInternalError() *AppError {
	return NewError(ErrorCodeInternalError, MsgInternal, http.StatusInternalServerError)
}
