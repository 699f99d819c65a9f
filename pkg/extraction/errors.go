package extraction

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "notafiscal/pkg/errors"
)

var (
	ErrNotAnObject    = errors.New("extraction output is not a JSON object")
	ErrEmptyResult    = errors.New("extraction returned an empty result list")
	ErrJobFailed      = errors.New("extraction job failed")
	ErrAgentNotUsable = errors.New("extraction agent has no id")
)

// APIError is a non-2xx answer from the extraction API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("llamacloud %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// ToAppError maps authentication failures to UNAUTHORIZED and everything
// else to EXTRACTION_FAILED.
func (e *APIError) ToAppError() *apperrors.AppError {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		appErr := apperrors.Unauthorized("LlamaCloud rejected the API key")
		appErr.Err = e
		return appErr
	}
	return apperrors.ExtractionFailed(e)
}
