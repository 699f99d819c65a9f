package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/sanitizer"
)

// DecodeJSONValue reads an arbitrary JSON document from the request body.
// Numbers are kept as json.Number.
func DecodeJSONValue(r *http.Request) (any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		return nil, apperrors.InvalidInput("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, apperrors.InvalidInput("request body is empty")
	}

	value, err := sanitizer.DecodeRaw(body)
	if errors.Is(err, sanitizer.ErrTrailingData) {
		return nil, apperrors.InvalidInput("request body must hold a single JSON document")
	}
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid request body")
	}
	return value, nil
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
