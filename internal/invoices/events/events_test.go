package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"notafiscal/internal/invoices/service"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/kafka"
	"notafiscal/pkg/logger"
	"notafiscal/pkg/model"
)

type mockPublisher struct {
	messages []kafka.Message
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, msg kafka.Message) error {
	m.messages = append(m.messages, msg)
	return m.err
}

type mockSanitizer struct {
	sanitizeFunc func(ctx context.Context, raw any) (*service.SanitizeResult, error)
	received     any
}

func (m *mockSanitizer) Sanitize(ctx context.Context, raw any) (*service.SanitizeResult, error) {
	m.received = raw
	return m.sanitizeFunc(ctx, raw)
}

func TestPublishExtracted(t *testing.T) {
	tests := []struct {
		name    string
		ext     *model.Extraction
		wantKey string
	}{
		{
			name:    "keyed by invoice number",
			ext:     &model.Extraction{ID: "abc", SourceFile: "a.pdf", Invoice: model.Invoice{InvoiceNumber: "NF-9"}},
			wantKey: "NF-9",
		},
		{
			name:    "falls back to id",
			ext:     &model.Extraction{ID: "abc", SourceFile: "a.pdf"},
			wantKey: "abc",
		},
		{
			name:    "falls back to file name",
			ext:     &model.Extraction{SourceFile: "a.pdf"},
			wantKey: "a.pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			tt.ext.Mode = model.ModeAgent
			tt.ext.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

			if err := NewExtractedPublisher(pub, "invoices").PublishExtracted(context.Background(), tt.ext, "req-7"); err != nil {
				t.Fatalf("PublishExtracted() error = %v", err)
			}
			if len(pub.messages) != 1 {
				t.Fatalf("messages = %d", len(pub.messages))
			}
			msg := pub.messages[0]
			if msg.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", msg.Key, tt.wantKey)
			}
			if msg.GetEventType() != EventTypeExtracted || msg.GetCorrelationID() != "req-7" || msg.GetEventID() == "" {
				t.Errorf("headers = %v", msg.Headers)
			}

			var event ExtractedEvent
			if err := msg.DecodeValue(&event); err != nil {
				t.Fatal(err)
			}
			if event.SourceFile != "a.pdf" || event.Mode != model.ModeAgent || !event.CreatedAt.Equal(tt.ext.CreatedAt) {
				t.Errorf("event = %+v", event)
			}
		})
	}
}

func TestPublishExtracted_PropagatesError(t *testing.T) {
	pub := &mockPublisher{err: kafka.ErrProducerClosed}
	err := NewExtractedPublisher(pub, "invoices").PublishExtracted(context.Background(), &model.Extraction{ID: "x"}, "")
	if !errors.Is(err, kafka.ErrProducerClosed) {
		t.Errorf("err = %v", err)
	}
}

func TestSanitizeWorker_Handle(t *testing.T) {
	sanitizer := &mockSanitizer{sanitizeFunc: func(_ context.Context, raw any) (*service.SanitizeResult, error) {
		return &service.SanitizeResult{
			Invoice:            model.Invoice{InvoiceNumber: "NF-1"},
			CalculatedSubtotal: 10,
			SubtotalMismatch:   true,
			Warnings:           []string{"subtotal mismatch (calculated=10, extracted=0)"},
		}, nil
	}}
	pub := &mockPublisher{}
	worker := NewSanitizeWorker(sanitizer, pub, "sanitizer-worker", logger.Discard())

	in := kafka.Message{
		Key:     "upload-1",
		Value:   []byte(`{"data": {"numero_fatura": 12.0}}`),
		Headers: map[string]string{kafka.HeaderEventID: "evt-1"},
	}
	if err := worker.Handle(context.Background(), in); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	data := sanitizer.received.(map[string]any)["data"].(map[string]any)
	if n, ok := data["numero_fatura"].(json.Number); !ok || n.String() != "12.0" {
		t.Errorf("numbers must stay json.Number, got %#v", data["numero_fatura"])
	}

	if len(pub.messages) != 1 {
		t.Fatalf("messages = %d", len(pub.messages))
	}
	out := pub.messages[0]
	if out.Key != "upload-1" || out.GetEventType() != EventTypeSanitized || out.GetCorrelationID() != "evt-1" {
		t.Errorf("out = %+v", out)
	}
	var event SanitizedEvent
	if err := out.DecodeValue(&event); err != nil {
		t.Fatal(err)
	}
	if event.SourceEventID != "evt-1" || event.Invoice.InvoiceNumber != "NF-1" || !event.SubtotalMismatch {
		t.Errorf("event = %+v", event)
	}
}

func TestSanitizeWorker_Errors(t *testing.T) {
	ok := func(context.Context, any) (*service.SanitizeResult, error) {
		return &service.SanitizeResult{}, nil
	}

	tests := []struct {
		name          string
		value         string
		sanitize      func(context.Context, any) (*service.SanitizeResult, error)
		publishErr    error
		wantType      kafka.ErrorType
		wantPublished int
	}{
		{name: "not json", value: "not json", sanitize: ok, wantType: kafka.ErrorTypePermanent},
		{name: "empty value", value: "", sanitize: ok, wantType: kafka.ErrorTypePermanent},
		{name: "trailing data", value: `{} {}`, sanitize: ok, wantType: kafka.ErrorTypePermanent},
		{
			name:  "invalid invoice",
			value: `{}`,
			sanitize: func(context.Context, any) (*service.SanitizeResult, error) {
				return nil, apperrors.Validation("Sanitized invoice is invalid", nil)
			},
			wantType: kafka.ErrorTypePermanent,
		},
		{
			name:  "deadline",
			value: `{}`,
			sanitize: func(context.Context, any) (*service.SanitizeResult, error) {
				return nil, context.DeadlineExceeded
			},
			wantType: kafka.ErrorTypeTransient,
		},
		{
			name:          "publish failure",
			value:         `{}`,
			sanitize:      ok,
			publishErr:    errors.New("connection refused"),
			wantType:      kafka.ErrorTypeTransient,
			wantPublished: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{err: tt.publishErr}
			worker := NewSanitizeWorker(&mockSanitizer{sanitizeFunc: tt.sanitize}, pub, "w", logger.Discard())

			err := worker.Handle(context.Background(), kafka.Message{Key: "k", Value: []byte(tt.value), Headers: map[string]string{}})
			if err == nil {
				t.Fatal("Handle() expected error")
			}
			if got := kafka.ClassifyError(err); got != tt.wantType {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.wantType)
			}
			if len(pub.messages) != tt.wantPublished {
				t.Errorf("published = %d, want %d", len(pub.messages), tt.wantPublished)
			}
		})
	}
}

func TestSanitizedKey(t *testing.T) {
	res := &service.SanitizeResult{Invoice: model.Invoice{InvoiceNumber: "NF-2"}}
	if got := sanitizedKey("raw", res); got != "raw" {
		t.Errorf("got %q", got)
	}
	if got := sanitizedKey("", res); got != "NF-2" {
		t.Errorf("got %q", got)
	}
	if got := sanitizedKey("", &service.SanitizeResult{}); got != "unkeyed" {
		t.Errorf("got %q", got)
	}
}
