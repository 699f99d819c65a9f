package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	invoiceserrors "notafiscal/internal/invoices/errors"
	"notafiscal/internal/invoices/repository"
	"notafiscal/internal/invoices/validator"
	"notafiscal/pkg/config"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/extraction"
	"notafiscal/pkg/metrics"
	"notafiscal/pkg/model"
	"notafiscal/pkg/sanitizer"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ExtractRequest struct {
	Path           string
	Filename       string // original upload name, defaults to the base of Path
	AgentName      string
	FallbackSchema string // path to the fallback schema file
	RequestID      string
}

type SanitizeResult struct {
	Invoice            model.Invoice `json:"invoice"`
	CalculatedSubtotal int64         `json:"calculated_subtotal_centavos"`
	SubtotalMismatch   bool          `json:"subtotal_mismatch"`
	Warnings           []string      `json:"warnings,omitempty"`
}

// Publisher announces stored extractions. It may be nil.
type Publisher interface {
	PublishExtracted(ctx context.Context, ext *model.Extraction, requestID string) error
}

// Recorder receives extraction outcomes for metrics. It may be nil.
type Recorder interface {
	RecordExtraction(mode, outcome string, d time.Duration)
	RecordSubtotalMismatch()
}

type InvoiceService interface {
	Extract(ctx context.Context, req ExtractRequest) (*model.Extraction, error)
	Sanitize(ctx context.Context, raw any) (*SanitizeResult, error)
	GetByID(ctx context.Context, id string) (*model.Extraction, error)
	FindByInvoiceNumber(ctx context.Context, numeroFatura string, limit int) ([]*model.Extraction, error)
}

type invoiceService struct {
	repo      repository.InvoiceRepository
	provider  extraction.Provider
	publisher Publisher
	recorder  Recorder
	validator *validator.InvoiceValidator
	cfg       *config.Config
	inspect   func(path string) (*extraction.Document, error)
	now       func() time.Time
}

// NewInvoiceService wires the extraction pipeline. repo, publisher and recorder
// are optional: without a repository records are returned but not stored.
func NewInvoiceService(
	repo repository.InvoiceRepository,
	provider extraction.Provider,
	publisher Publisher,
	recorder Recorder,
	validator *validator.InvoiceValidator,
	cfg *config.Config,
) InvoiceService {
	return &invoiceService{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		recorder:  recorder,
		validator: validator,
		cfg:       cfg,
		inspect:   extraction.InspectDocument,
		now:       time.Now,
	}
}

func (s *invoiceService) Extract(ctx context.Context, req ExtractRequest) (*model.Extraction, error) {
	if s.provider == nil {
		return nil, apperrors.MissingCredentials(config.EnvLlamaCloudAPIKey)
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, apperrors.InvalidInput("input file is required")
	}

	agentName := strings.TrimSpace(req.AgentName)
	if agentName == "" {
		agentName = s.cfg.Extraction.AgentName
	}
	schemaPath := req.FallbackSchema
	if schemaPath == "" {
		schemaPath = s.cfg.Extraction.FallbackSchemaPath
	}
	schemaPath = extraction.ResolveInputPath(schemaPath)

	doc, err := s.inspect(req.Path)
	if err != nil {
		s.cfg.Log.Warn("Document rejected", "path", req.Path, "request_id", req.RequestID, "error", err)
		return nil, err
	}

	start := s.now()
	result, err := extraction.ExtractAgentFirst(ctx, s.provider, doc.Path, agentName, schemaPath, s.cfg.Log)
	if err != nil {
		s.recordExtraction("", metrics.OutcomeFailure, s.now().Sub(start))
		s.cfg.Log.Error("Invoice extraction failed",
			"file", doc.Name,
			"agent", agentName,
			"request_id", req.RequestID,
			"error", err,
		)
		var apiErr *extraction.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr.ToAppError()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("Invoice extraction timed out")
		}
		return nil, apperrors.ExtractionFailed(err)
	}

	s.recordExtraction(result.Mode, metrics.OutcomeSuccess, s.now().Sub(start))

	sanitized := s.sanitize(result.Payload)
	if sanitized.SubtotalMismatch && s.recorder != nil {
		s.recorder.RecordSubtotalMismatch()
	}
	filename := req.Filename
	if filename == "" {
		filename = doc.Name
	}
	ext := &model.Extraction{
		SourceFile:         filename,
		MimeType:           doc.MimeType,
		PageCount:          doc.PageCount,
		AgentName:          agentName,
		Mode:               result.Mode,
		Invoice:            sanitized.Invoice,
		CalculatedSubtotal: sanitized.CalculatedSubtotal,
		SubtotalMismatch:   sanitized.SubtotalMismatch,
		Warnings:           sanitized.Warnings,
		CreatedAt:          s.now().UTC().Truncate(time.Millisecond),
	}
	s.logWarnings(ext.Warnings, "file", filename, "request_id", req.RequestID)

	if err := s.validator.Validate(ext); err != nil {
		s.cfg.Log.Error("Sanitized invoice failed validation", "file", filename, "error", err)
		return nil, s.validationError(err)
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, ext); err != nil {
			s.cfg.Log.Error("Failed to store invoice extraction", "file", filename, "error", err)
			return nil, apperrors.Internal("Failed to store invoice extraction", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishExtracted(ctx, ext, req.RequestID); err != nil {
			s.cfg.Log.Warn("Failed to publish extraction event",
				"id", ext.ID,
				"numero_fatura", ext.Invoice.InvoiceNumber,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Invoice extracted successfully",
		"id", ext.ID,
		"file", filename,
		"mode", ext.Mode,
		"numero_fatura", ext.Invoice.InvoiceNumber,
		"itens", len(ext.Invoice.LineItems),
		"tributos", len(ext.Invoice.Taxes),
		"duration", s.now().Sub(start),
		"request_id", req.RequestID,
	)
	return ext, nil
}

func (s *invoiceService) recordExtraction(mode, outcome string, d time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordExtraction(mode, outcome, d)
	}
}

func (s *invoiceService) Sanitize(ctx context.Context, raw any) (*SanitizeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := extraction.UnwrapRunData(raw)
	result := s.sanitize(payload)
	if err != nil && raw != nil {
		result.Warnings = append([]string{NonObjectWarning}, result.Warnings...)
	}
	if err := s.validator.ValidateInvoice(&result.Invoice); err != nil {
		return nil, s.validationError(err)
	}
	s.logWarnings(result.Warnings)
	return result, nil
}

func (s *invoiceService) sanitize(payload map[string]any) *SanitizeResult {
	inv := sanitizer.Sanitize(payload)
	calculated := inv.ItemsTotalCents()

	result := &SanitizeResult{
		Invoice:            inv,
		CalculatedSubtotal: calculated,
		SubtotalMismatch:   calculated != inv.ItemsSubtotalCents,
	}
	if result.SubtotalMismatch {
		result.Warnings = append(result.Warnings, SubtotalWarning(calculated, inv.ItemsSubtotalCents))
	}
	return result
}

// NonObjectWarning flags a payload that could not be reduced to an object.
// The invoice then carries only defaults.
const NonObjectWarning = "payload is not a JSON object; defaults applied"

// SubtotalWarning is the message reported when item totals and the
// extracted subtotal disagree.
func SubtotalWarning(calculated, extracted int64) string {
	return fmt.Sprintf("subtotal mismatch (calculated=%d, extracted=%d)", calculated, extracted)
}

func (s *invoiceService) logWarnings(warnings []string, attrs ...any) {
	for _, w := range warnings {
		s.cfg.Log.Warn(w, attrs...)
	}
}

func (s *invoiceService) validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Sanitized invoice is invalid", verrs.Details())
	}
	return apperrors.Internal("Failed to validate invoice", err)
}

func (s *invoiceService) GetByID(ctx context.Context, id string) (*model.Extraction, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Invoice ID cannot be empty")
	}
	if s.repo == nil {
		return nil, apperrors.Unavailable("invoice storage")
	}

	ext, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, invoiceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Invoice", id)
		}
		if errors.Is(err, invoiceserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid invoice ID format")
		}
		s.cfg.Log.Error("Failed to get invoice by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve invoice", err)
	}
	return ext, nil
}

func (s *invoiceService) FindByInvoiceNumber(ctx context.Context, numeroFatura string, limit int) ([]*model.Extraction, error) {
	numeroFatura = strings.TrimSpace(numeroFatura)
	if numeroFatura == "" {
		return nil, apperrors.InvalidInput("numero_fatura cannot be empty")
	}
	if s.repo == nil {
		return nil, apperrors.Unavailable("invoice storage")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	extractions, err := s.repo.FindByInvoiceNumber(ctx, numeroFatura, limit)
	if err != nil {
		s.cfg.Log.Error("Failed to search invoices", "numero_fatura", numeroFatura, "error", err)
		return nil, apperrors.Internal("Failed to search invoices", err)
	}
	return extractions, nil
}

// SchemaPathFromName resolves a caller supplied schema file name inside the
// directory of the default fallback schema. Names carrying a directory are rejected.
func SchemaPathFromName(cfg config.Extraction, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", apperrors.InvalidInput("fallback_schema must be a file name without directories")
	}
	dir := filepath.Dir(extraction.ResolveInputPath(cfg.FallbackSchemaPath))
	return filepath.Join(dir, name), nil
}
