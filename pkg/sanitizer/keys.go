package sanitizer

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	KeyInvoiceNumber = "numero_fatura"
	KeyIssueDate     = "data_emissao"
	KeyDueDate       = "data_vencimento"
	KeyIssuer        = "empresa_emissora"
	KeyCustomer      = "cliente"
	KeyLineItems     = "itens"
	KeyTaxes         = "tributos"
	KeyItemsSubtotal = "subtotal_itens_centavos"
	KeyInvoiceTotal  = "valor_total_fatura_centavos"

	KeyPartyName    = "nome"
	KeyPartyTaxID   = "cnpj"
	KeyPartyAddress = "endereco"

	KeyItemDescription = "descricao"
	KeyItemQuantity    = "quantidade"
	KeyItemUnitPrice   = "valor_unitario_centavos"
	KeyItemTotal       = "valor_total_item_centavos"

	KeyTaxType   = "tipo"
	KeyTaxAmount = "valor_centavos"
)

// RootKeys returns the exact key set of a canonical invoice.
func RootKeys() []string {
	return []string{
		KeyInvoiceNumber, KeyIssueDate, KeyDueDate,
		KeyIssuer, KeyCustomer,
		KeyLineItems, KeyTaxes,
		KeyItemsSubtotal, KeyInvoiceTotal,
	}
}

func PartyKeys() []string {
	return []string{KeyPartyName, KeyPartyTaxID, KeyPartyAddress}
}

func LineItemKeys() []string {
	return []string{KeyItemDescription, KeyItemQuantity, KeyItemUnitPrice, KeyItemTotal}
}

func TaxKeys() []string {
	return []string{KeyTaxType, KeyTaxAmount}
}

var nonASCII = runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })

// NormalizeKey folds a raw key onto the canonical spelling: surrounding whitespace is
// trimmed, inner spaces become underscores, and accented letters lose their marks.
// Any rune still outside ASCII after decomposition is dropped.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.ReplaceAll(key, " ", "_")

	// transform chains keep internal buffers, so one is built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(nonASCII))
	folded, _, err := transform.String(t, key)
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, key)
	}
	return folded
}

// NormalizeKeys returns a copy of value with every map key passed through NormalizeKey.
// Maps and slices are copied recursively; any other value is returned as is. When two
// keys of the same map collapse onto one, the key that sorts last wins.
func NormalizeKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(v))
		for _, k := range keys {
			out[NormalizeKey(k)] = NormalizeKeys(v[k])
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeKeys(item)
		}
		return out
	default:
		return value
	}
}
