package model

import (
	"encoding/json"
	"math"
	"math/big"
	"time"
)

type Party struct {
	Name    string `json:"nome" bson:"nome"`
	TaxID   string `json:"cnpj" bson:"cnpj"`
	Address string `json:"endereco" bson:"endereco"`
}

type LineItem struct {
	Description    string `json:"descricao" bson:"descricao"`
	Quantity       int64  `json:"quantidade" bson:"quantidade"`
	UnitPriceCents int64  `json:"valor_unitario_centavos" bson:"valor_unitario_centavos"`
	TotalCents     int64  `json:"valor_total_item_centavos" bson:"valor_total_item_centavos"`
}

type Tax struct {
	Type        string `json:"tipo" bson:"tipo"`
	AmountCents int64  `json:"valor_centavos" bson:"valor_centavos"`
}

// Invoice is the canonical shape handed to downstream consumers. Its JSON
// form always carries every key, with empty arrays instead of null.
type Invoice struct {
	InvoiceNumber      string     `json:"numero_fatura" bson:"numero_fatura"`
	IssueDate          string     `json:"data_emissao" bson:"data_emissao"`
	DueDate            string     `json:"data_vencimento" bson:"data_vencimento"`
	Issuer             Party      `json:"empresa_emissora" bson:"empresa_emissora"`
	Customer           Party      `json:"cliente" bson:"cliente"`
	LineItems          []LineItem `json:"itens" bson:"itens" validate:"required,dive"`
	Taxes              []Tax      `json:"tributos" bson:"tributos" validate:"required,dive"`
	ItemsSubtotalCents int64      `json:"subtotal_itens_centavos" bson:"subtotal_itens_centavos"`
	InvoiceTotalCents  int64      `json:"valor_total_fatura_centavos" bson:"valor_total_fatura_centavos"`
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	type plain Invoice
	out := plain(inv)
	if out.LineItems == nil {
		out.LineItems = []LineItem{}
	}
	if out.Taxes == nil {
		out.Taxes = []Tax{}
	}
	return json.Marshal(out)
}

// ItemsTotalCents sums the per-line totals as reported by the extractor. The
// sum saturates at the int64 bounds.
func (inv Invoice) ItemsTotalCents() int64 {
	sum := new(big.Int)
	for _, item := range inv.LineItems {
		sum.Add(sum, big.NewInt(item.TotalCents))
	}
	switch {
	case sum.IsInt64():
		return sum.Int64()
	case sum.Sign() > 0:
		return math.MaxInt64
	default:
		return math.MinInt64
	}
}

const (
	ModeAgent  = "agent"
	ModeSchema = "schema"
	ModeRaw    = "raw"
)

type Extraction struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SourceFile         string    `json:"source_file" bson:"source_file"`
	MimeType           string    `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
	PageCount          int       `json:"page_count,omitempty" bson:"page_count,omitempty"`
	AgentName          string    `json:"agent_name,omitempty" bson:"agent_name,omitempty"`
	Mode               string    `json:"mode" bson:"mode" validate:"required,oneof=agent schema raw"`
	Invoice            Invoice   `json:"invoice" bson:"invoice"`
	CalculatedSubtotal int64     `json:"calculated_subtotal_centavos" bson:"calculated_subtotal_centavos"`
	SubtotalMismatch   bool      `json:"subtotal_mismatch" bson:"subtotal_mismatch"`
	Warnings           []string  `json:"warnings,omitempty" bson:"warnings,omitempty"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}
