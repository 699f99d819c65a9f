package sanitizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"notafiscal/pkg/model"
)

// Sanitize builds the canonical invoice from a raw extraction payload. Keys are
// normalized first, then every canonical field is looked up by exact key and coerced.
// Keys outside the canonical sets are dropped at every level.
func Sanitize(raw map[string]any) model.Invoice {
	normalized, _ := NormalizeKeys(raw).(map[string]any)

	return model.Invoice{
		InvoiceNumber:      AsString(normalized[KeyInvoiceNumber]),
		IssueDate:          AsString(normalized[KeyIssueDate]),
		DueDate:            AsString(normalized[KeyDueDate]),
		Issuer:             sanitizeParty(normalized[KeyIssuer]),
		Customer:           sanitizeParty(normalized[KeyCustomer]),
		LineItems:          sanitizeLineItems(normalized[KeyLineItems]),
		Taxes:              sanitizeTaxes(normalized[KeyTaxes]),
		ItemsSubtotalCents: ToInt(normalized[KeyItemsSubtotal]),
		InvoiceTotalCents:  ToInt(normalized[KeyInvoiceTotal]),
	}
}

// SanitizeValue accepts any decoded JSON value. Anything other than an object yields
// an invoice holding only defaults.
func SanitizeValue(value any) model.Invoice {
	raw, _ := value.(map[string]any)
	return Sanitize(raw)
}

// ErrTrailingData is returned by DecodeRaw when data holds more than one JSON value.
var ErrTrailingData = errors.New("trailing data after JSON document")

// DecodeRaw parses exactly one JSON document. Numbers are decoded as json.Number so
// large cent amounts keep their precision.
func DecodeRaw(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, ErrTrailingData
	}
	return value, nil
}

// SanitizeJSON decodes data and sanitizes it. Only undecodable bytes produce an error.
func SanitizeJSON(data []byte) (model.Invoice, error) {
	value, err := DecodeRaw(data)
	if err != nil {
		return Sanitize(nil), fmt.Errorf("decode extraction payload: %w", err)
	}
	return SanitizeValue(value), nil
}

func sanitizeParty(value any) model.Party {
	source, _ := value.(map[string]any)
	return model.Party{
		Name:    AsString(source[KeyPartyName]),
		TaxID:   AsString(source[KeyPartyTaxID]),
		Address: AsString(source[KeyPartyAddress]),
	}
}

func sanitizeLineItems(value any) []model.LineItem {
	list, ok := value.([]any)
	if !ok {
		return []model.LineItem{}
	}

	out := make([]model.LineItem, 0, len(list))
	for _, entry := range list {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.LineItem{
			Description:    AsString(item[KeyItemDescription]),
			Quantity:       ToInt(item[KeyItemQuantity]),
			UnitPriceCents: ToInt(item[KeyItemUnitPrice]),
			TotalCents:     ToInt(item[KeyItemTotal]),
		})
	}
	return out
}

func sanitizeTaxes(value any) []model.Tax {
	list, ok := value.([]any)
	if !ok {
		return []model.Tax{}
	}

	out := make([]model.Tax, 0, len(list))
	for _, entry := range list {
		tax, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.Tax{
			Type:        AsString(tax[KeyTaxType]),
			AmountCents: ToInt(tax[KeyTaxAmount]),
		})
	}
	return out
}
