package events

import (
	"context"
	"errors"

	"notafiscal/internal/invoices/service"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/kafka"
	"notafiscal/pkg/logger"
	"notafiscal/pkg/sanitizer"
)

// Sanitizer is the part of service.InvoiceService the worker needs.
type Sanitizer interface {
	Sanitize(ctx context.Context, raw any) (*service.SanitizeResult, error)
}

type SanitizeWorker struct {
	sanitizer Sanitizer
	producer  MessagePublisher
	source    string
	log       *logger.Logger
}

func NewSanitizeWorker(sanitizer Sanitizer, producer MessagePublisher, source string, log *logger.Logger) *SanitizeWorker {
	return &SanitizeWorker{
		sanitizer: sanitizer,
		producer:  producer,
		source:    source,
		log:       log,
	}
}

// Handle sanitizes one raw extraction and republishes it under the same key.
// Payloads that are not JSON are permanent failures.
func (w *SanitizeWorker) Handle(ctx context.Context, msg kafka.Message) error {
	raw, err := sanitizer.DecodeRaw(msg.Value)
	if err != nil {
		return kafka.NewPermanentError("raw extraction is not valid JSON", err)
	}

	result, err := w.sanitizer.Sanitize(ctx, raw)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return kafka.NewTransientError("sanitize interrupted", err)
		}
		if apperrors.HasCode(err, apperrors.CodeValidation) {
			return kafka.NewPermanentError("sanitized invoice is invalid", err)
		}
		return err
	}

	for _, warning := range result.Warnings {
		w.log.Warn(warning,
			"event_id", msg.GetEventID(),
			"key", msg.Key,
			"offset", msg.Offset,
		)
	}

	correlationID := msg.GetCorrelationID()
	if correlationID == "" {
		correlationID = msg.GetEventID()
	}

	out, err := kafka.NewMessage().
		WithKey(sanitizedKey(msg.Key, result)).
		WithValue(SanitizedEvent{
			SourceEventID:      msg.GetEventID(),
			Invoice:            result.Invoice,
			CalculatedSubtotal: result.CalculatedSubtotal,
			SubtotalMismatch:   result.SubtotalMismatch,
			Warnings:           result.Warnings,
		}).
		WithEventType(EventTypeSanitized).
		WithSchemaVersion(SchemaVersion).
		WithSource(w.source).
		WithCorrelationID(correlationID).
		Build()
	if err != nil {
		return kafka.NewPermanentError("encode sanitized invoice", err)
	}

	if err := w.producer.Publish(ctx, out); err != nil {
		return err
	}

	w.log.Info("Invoice sanitized",
		"key", out.Key,
		"numero_fatura", result.Invoice.InvoiceNumber,
		"itens", len(result.Invoice.LineItems),
		"tributos", len(result.Invoice.Taxes),
		"correlation_id", correlationID,
	)
	return nil
}

func sanitizedKey(rawKey string, result *service.SanitizeResult) string {
	if rawKey != "" {
		return rawKey
	}
	if result.Invoice.InvoiceNumber != "" {
		return result.Invoice.InvoiceNumber
	}
	return "unkeyed"
}
