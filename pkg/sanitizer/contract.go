package sanitizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"notafiscal/pkg/model"
)

const (
	RuleKeySet  = "key_set"
	RuleType    = "type"
	RuleInteger = "integer"
)

// ContractError names the first invariant a payload breaks.
type ContractError struct {
	Path   string
	Rule   string
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation at %s (%s): %s", e.Path, e.Rule, e.Detail)
}

// AssertInvoice checks the JSON form of inv against the canonical contract.
func AssertInvoice(inv model.Invoice) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	return AssertContract(payload)
}

// AssertContract verifies a decoded canonical payload: exact key sets on the invoice,
// both parties, every line item and every tax; text fields are strings; count and
// money fields are integral numbers; itens and tributos are arrays of objects.
func AssertContract(payload map[string]any) error {
	if err := checkKeySet("$", payload, RootKeys()); err != nil {
		return err
	}

	for _, key := range []string{KeyInvoiceNumber, KeyIssueDate, KeyDueDate} {
		if err := checkString(key, payload[key]); err != nil {
			return err
		}
	}

	for _, key := range []string{KeyIssuer, KeyCustomer} {
		if err := checkRecord(key, payload[key], PartyKeys(), PartyKeys(), nil); err != nil {
			return err
		}
	}

	if err := checkList(KeyLineItems, payload[KeyLineItems], LineItemKeys(),
		[]string{KeyItemDescription},
		[]string{KeyItemQuantity, KeyItemUnitPrice, KeyItemTotal},
	); err != nil {
		return err
	}

	if err := checkList(KeyTaxes, payload[KeyTaxes], TaxKeys(),
		[]string{KeyTaxType},
		[]string{KeyTaxAmount},
	); err != nil {
		return err
	}

	for _, key := range []string{KeyItemsSubtotal, KeyInvoiceTotal} {
		if err := checkInteger(key, payload[key]); err != nil {
			return err
		}
	}
	return nil
}

func checkList(path string, value any, keys, stringFields, intFields []string) error {
	list, ok := value.([]any)
	if !ok {
		return &ContractError{Path: path, Rule: RuleType, Detail: fmt.Sprintf("must be an array, got %s", typeName(value))}
	}
	for i, entry := range list {
		if err := checkRecord(fmt.Sprintf("%s[%d]", path, i), entry, keys, stringFields, intFields); err != nil {
			return err
		}
	}
	return nil
}

func checkRecord(path string, value any, keys, stringFields, intFields []string) error {
	record, ok := value.(map[string]any)
	if !ok {
		return &ContractError{Path: path, Rule: RuleType, Detail: fmt.Sprintf("must be an object, got %s", typeName(value))}
	}
	if err := checkKeySet(path, record, keys); err != nil {
		return err
	}
	for _, field := range stringFields {
		if err := checkString(path+"."+field, record[field]); err != nil {
			return err
		}
	}
	for _, field := range intFields {
		if err := checkInteger(path+"."+field, record[field]); err != nil {
			return err
		}
	}
	return nil
}

func checkKeySet(path string, record map[string]any, want []string) error {
	expected := make(map[string]struct{}, len(want))
	var missing []string
	for _, k := range want {
		expected[k] = struct{}{}
		if _, ok := record[k]; !ok {
			missing = append(missing, k)
		}
	}

	var unexpected []string
	for k := range record {
		if _, ok := expected[k]; !ok {
			unexpected = append(unexpected, k)
		}
	}

	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(unexpected)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing ["+strings.Join(missing, ", ")+"]")
	}
	if len(unexpected) > 0 {
		parts = append(parts, "unexpected ["+strings.Join(unexpected, ", ")+"]")
	}
	return &ContractError{Path: path, Rule: RuleKeySet, Detail: strings.Join(parts, ", ")}
}

func checkString(path string, value any) error {
	if _, ok := value.(string); !ok {
		return &ContractError{Path: path, Rule: RuleType, Detail: fmt.Sprintf("must be a string, got %s", typeName(value))}
	}
	return nil
}

func checkInteger(path string, value any) error {
	if isInteger(value) {
		return nil
	}
	return &ContractError{Path: path, Rule: RuleInteger, Detail: fmt.Sprintf("must be an integer, got %s", typeName(value))}
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := strconv.ParseInt(v.String(), 10, 64)
		return err == nil
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v)
	default:
		return false
	}
}

func typeName(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number " + v.String()
	case float32, float64:
		return fmt.Sprintf("number %v", v)
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
