package middleware

import (
	"net/http"

	httputil "notafiscal/pkg/http"
)

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	_ = httputil.WriteJSON(w, status, httputil.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
