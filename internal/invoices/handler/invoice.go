package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"notafiscal/internal/invoices/service"
	"notafiscal/pkg/config"
	apperrors "notafiscal/pkg/errors"
	httputil "notafiscal/pkg/http"
	"notafiscal/pkg/logger"
	"notafiscal/pkg/middleware"
	"notafiscal/pkg/model"
)

const extractFailedMessage = "Invoice extraction failed."

type ExtractResponse struct {
	OK       bool          `json:"ok"`
	Data     model.Invoice `json:"data"`
	ID       string        `json:"id,omitempty"`
	Warnings []string      `json:"warnings"`
}

type SanitizeResponse struct {
	OK       bool          `json:"ok"`
	Data     model.Invoice `json:"data"`
	Warnings []string      `json:"warnings,omitempty"`
}

type FailureResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type InvoiceHandler struct {
	service service.InvoiceService
	cfg     *config.Config
	log     *logger.Logger
	tempDir string
}

func NewInvoiceHandler(service service.InvoiceService, cfg *config.Config) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		cfg:     cfg,
		log:     cfg.Log,
		tempDir: os.TempDir(),
	}
}

func (h *InvoiceHandler) Extract(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		h.writeError(w, "Extract", apperrors.InvalidInput("Invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Extract", apperrors.InvalidInput("Field 'file' is required"))
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadSize {
		h.writeError(w, "Extract", apperrors.InvalidInput(
			fmt.Sprintf("file exceeds the maximum upload size of %d bytes", h.cfg.MaxUploadSize)))
		return
	}

	schemaPath, err := service.SchemaPathFromName(h.cfg.Extraction, r.FormValue("fallback_schema"))
	if err != nil {
		h.writeError(w, "Extract", err)
		return
	}

	path, err := h.storeUpload(file, header)
	if err != nil {
		h.log.Error("Failed to store upload", "file", header.Filename, "error", err)
		h.writeError(w, "Extract", apperrors.Internal("Failed to store upload", err))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.log.Warn("Failed to remove temporary upload", "path", path, "error", err)
		}
	}()

	ext, err := h.service.Extract(r.Context(), service.ExtractRequest{
		Path:           path,
		Filename:       filepath.Base(header.Filename),
		AgentName:      r.FormValue("agent_name"),
		FallbackSchema: schemaPath,
		RequestID:      middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		h.writeExtractFailure(w, err)
		return
	}

	warnings := ext.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	if err := httputil.WriteJSON(w, http.StatusOK, ExtractResponse{
		OK:       true,
		Data:     ext.Invoice,
		ID:       ext.ID,
		Warnings: warnings,
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Extract", "operation", "WriteJSON", "error", err)
	}
}

// storeUpload copies the upload to a uniquely named temp file that keeps the
// original extension.
func (h *InvoiceHandler) storeUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(h.tempDir, "notafiscal-"+uuid.NewString()+ext)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// writeExtractFailure reports extraction errors with the 422 envelope. Request
// problems keep their own status.
func (h *InvoiceHandler) writeExtractFailure(w http.ResponseWriter, err error) {
	appErr := apperrors.AsAppError(err)
	switch appErr.Code {
	case apperrors.CodeExtractionFailed, apperrors.CodeTimeout, apperrors.CodeValidation, apperrors.CodeNotAnObject:
	default:
		h.writeError(w, "Extract", err)
		return
	}

	resp := FailureResponse{OK: false, Message: extractFailedMessage}
	if h.cfg.AppDebug {
		resp.Error = appErr.Cause()
	}
	if writeErr := httputil.WriteJSON(w, http.StatusUnprocessableEntity, resp); writeErr != nil {
		h.log.Error("failed to write JSON response", "handler", "Extract", "operation", "WriteJSON", "error", writeErr)
	}
}

func (h *InvoiceHandler) Sanitize(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := httputil.DecodeJSONValue(r)
	if err != nil {
		h.writeError(w, "Sanitize", err)
		return
	}

	result, err := h.service.Sanitize(r.Context(), raw)
	if err != nil {
		h.writeError(w, "Sanitize", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, SanitizeResponse{
		OK:       true,
		Data:     result.Invoice,
		Warnings: result.Warnings,
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Sanitize", "operation", "WriteJSON", "error", err)
	}
}

func (h *InvoiceHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	ext, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, ext); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InvoiceHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	numero := query.Get("numero_fatura")
	if numero == "" {
		h.writeError(w, "Search", apperrors.InvalidInput("'numero_fatura' query parameter is required"))
		return
	}

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			h.writeError(w, "Search", apperrors.InvalidInput(fmt.Sprintf("invalid limit parameter: %s", limitStr)))
			return
		}
	}

	extractions, err := h.service.FindByInvoiceNumber(r.Context(), numero, limit)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WriteSuccess(w, extractions); err != nil {
		h.log.Error("failed to write success response", "handler", "Search", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InvoiceHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/invoices/extract", h.Extract)
	router.POST("/api/v1/invoices/sanitize", h.Sanitize)
	router.GET("/api/v1/invoices", h.Search)
	router.GET("/api/v1/invoices/:id", h.GetByID)
}
