package events

import (
	"context"

	"notafiscal/pkg/kafka"
	"notafiscal/pkg/model"
)

// ExtractedPublisher announces stored extractions on the extracted topic.
type ExtractedPublisher struct {
	producer MessagePublisher
	source   string
}

func NewExtractedPublisher(producer MessagePublisher, source string) *ExtractedPublisher {
	return &ExtractedPublisher{
		producer: producer,
		source:   source,
	}
}

func (p *ExtractedPublisher) PublishExtracted(ctx context.Context, ext *model.Extraction, requestID string) error {
	msg, err := kafka.NewMessage().
		WithKey(extractionKey(ext)).
		WithValue(ExtractedEvent{
			ID:                 ext.ID,
			SourceFile:         ext.SourceFile,
			Mode:               ext.Mode,
			Invoice:            ext.Invoice,
			CalculatedSubtotal: ext.CalculatedSubtotal,
			SubtotalMismatch:   ext.SubtotalMismatch,
			Warnings:           ext.Warnings,
			CreatedAt:          ext.CreatedAt,
		}).
		WithEventType(EventTypeExtracted).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(requestID).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

// extractionKey partitions by invoice number so every extraction of the same
// invoice lands on one partition.
func extractionKey(ext *model.Extraction) string {
	if ext.Invoice.InvoiceNumber != "" {
		return ext.Invoice.InvoiceNumber
	}
	if ext.ID != "" {
		return ext.ID
	}
	return ext.SourceFile
}
