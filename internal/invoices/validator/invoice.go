package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"notafiscal/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(v))
}

// Details flattens the errors into the map carried by a VALIDATION_ERROR response.
func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, e := range v {
		fields[e.Field] = e.Message
	}
	return map[string]any{"fields": fields}
}

// InvoiceValidator checks the shape of sanitized records before they are stored.
type InvoiceValidator struct {
	validate *validator.Validate
}

func NewInvoiceValidator() *InvoiceValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	return &InvoiceValidator{
		validate: v,
	}
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func (v *InvoiceValidator) ValidateInvoice(inv *model.Invoice) error {
	return v.check(inv)
}

func (v *InvoiceValidator) Validate(ext *model.Extraction) error {
	if err := v.check(ext); err != nil {
		return err
	}
	return v.validateBusinessRules(ext)
}

func (v *InvoiceValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *InvoiceValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fieldPath(err.Namespace()),
			Message: message(err),
		})
	}

	return validationErrors
}

// fieldPath drops the root struct name: "Extraction.invoice.itens" -> "invoice.itens".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", err.Param())
	case "mongodb":
		return "must be a valid object id"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", err.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", err.Tag())
	}
}

func (v *InvoiceValidator) validateBusinessRules(ext *model.Extraction) error {
	var errs ValidationErrors
	if ext.CalculatedSubtotal != ext.Invoice.ItemsTotalCents() {
		errs = append(errs, ValidationError{
			Field:   "calculated_subtotal_centavos",
			Message: "must equal the sum of invoice.itens[].valor_total_item_centavos",
		})
	}
	if ext.SubtotalMismatch != (ext.CalculatedSubtotal != ext.Invoice.ItemsSubtotalCents) {
		errs = append(errs, ValidationError{
			Field:   "subtotal_mismatch",
			Message: "does not match the calculated and extracted subtotals",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
