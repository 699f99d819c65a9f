package validator

import (
	"errors"
	"testing"

	"notafiscal/pkg/model"
)

func validExtraction() *model.Extraction {
	inv := model.Invoice{
		InvoiceNumber:      "123",
		LineItems:          []model.LineItem{{Description: "a", Quantity: 1, UnitPriceCents: 100, TotalCents: 100}},
		Taxes:              []model.Tax{},
		ItemsSubtotalCents: 100,
		InvoiceTotalCents:  100,
	}
	return &model.Extraction{
		SourceFile:         "nota.pdf",
		Mode:               model.ModeAgent,
		Invoice:            inv,
		CalculatedSubtotal: 100,
	}
}

func TestInvoiceValidator_Validate(t *testing.T) {
	v := NewInvoiceValidator()

	tests := []struct {
		name      string
		mutate    func(*model.Extraction)
		wantField string
	}{
		{name: "valid", mutate: func(*model.Extraction) {}},
		{name: "valid with hex id", mutate: func(e *model.Extraction) { e.ID = "65a1f0c2e4b0a1b2c3d4e5f6" }},
		{name: "bad mode", mutate: func(e *model.Extraction) { e.Mode = "ocr" }, wantField: "mode"},
		{name: "missing mode", mutate: func(e *model.Extraction) { e.Mode = "" }, wantField: "mode"},
		{name: "bad id", mutate: func(e *model.Extraction) { e.ID = "not-an-id" }, wantField: "id"},
		{name: "nil items", mutate: func(e *model.Extraction) {
			e.Invoice.LineItems = nil
			e.CalculatedSubtotal = 0
		}, wantField: "invoice.itens"},
		{name: "nil taxes", mutate: func(e *model.Extraction) { e.Invoice.Taxes = nil }, wantField: "invoice.tributos"},
		{name: "wrong calculated subtotal", mutate: func(e *model.Extraction) { e.CalculatedSubtotal = 5; e.SubtotalMismatch = true }, wantField: "calculated_subtotal_centavos"},
		{name: "mismatch flag not set", mutate: func(e *model.Extraction) { e.Invoice.ItemsSubtotalCents = 90 }, wantField: "subtotal_mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := validExtraction()
			tt.mutate(ext)
			err := v.Validate(ext)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want %s", verrs, tt.wantField)
			}
		})
	}
}

func TestValidationErrors_Details(t *testing.T) {
	errs := ValidationErrors{{Field: "mode", Message: "is required"}}
	fields, ok := errs.Details()["fields"].(map[string]any)
	if !ok || fields["mode"] != "is required" {
		t.Errorf("Details() = %v", errs.Details())
	}
	if errs.Error() != "validation failed: 1 error(s)" {
		t.Errorf("Error() = %q", errs.Error())
	}
}
