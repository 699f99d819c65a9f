// Package events carries invoice records over Kafka: the service announces
// stored extractions and the sanitizer worker turns raw extractor output into
// canonical invoices.
package events

import (
	"context"
	"time"

	"notafiscal/pkg/kafka"
	"notafiscal/pkg/model"
)

const (
	EventTypeExtracted = "invoice.extracted"
	EventTypeSanitized = "invoice.sanitized"

	SchemaVersion = "1"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type ExtractedEvent struct {
	ID                 string        `json:"id,omitempty"`
	SourceFile         string        `json:"source_file"`
	Mode               string        `json:"mode"`
	Invoice            model.Invoice `json:"invoice"`
	CalculatedSubtotal int64         `json:"calculated_subtotal_centavos"`
	SubtotalMismatch   bool          `json:"subtotal_mismatch"`
	Warnings           []string      `json:"warnings,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

type SanitizedEvent struct {
	SourceEventID      string        `json:"source_event_id,omitempty"`
	Invoice            model.Invoice `json:"invoice"`
	CalculatedSubtotal int64         `json:"calculated_subtotal_centavos"`
	SubtotalMismatch   bool          `json:"subtotal_mismatch"`
	Warnings           []string      `json:"warnings,omitempty"`
}
