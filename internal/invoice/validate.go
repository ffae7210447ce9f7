package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrSubmissionRejected = errors.New("invoice submission rejected")
	ErrFormClosed         = errors.New("invoice form is closed")
	ErrLineIndex          = errors.New("line index out of range")
)

var (
	maxQuantity   = decimal.NewFromInt(10000)
	maxUnitRate   = decimal.NewFromInt(1000000)
	maxTaxPercent = hundred
	maxDiscount   = decimal.NewFromInt(1_000_000_000_000)
)

// FieldError is one validation failure. Field uses the form's paths, e.g.
// "customer_id" or "items[2].quantity".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the full set of failures for a form.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Has reports whether any failure was recorded for field.
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func LineField(index int, name string) string {
	return fmt.Sprintf("items[%d].%s", index, name)
}

// Validate reports every failure without touching form state.
func (f *Form) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if strings.TrimSpace(f.header.CustomerID) == "" {
		add("customer_id", "Customer is required")
	}
	if strings.TrimSpace(f.header.SalesPerson) == "" {
		add("sales_person", "Sales person is required")
	}
	if f.header.InvoiceDate.IsZero() {
		add("invoice_date", "Invoice date is required")
	}
	if f.header.DeliveryDate.IsZero() {
		add("delivery_date", "Delivery date is required")
	}

	if len(f.lines) < 1 {
		add("items", "At least one item is required")
	}
	for i, line := range f.lines {
		if strings.TrimSpace(line.CatalogItemID) == "" {
			add(LineField(i, "catalog_item_id"), "Item is required")
		}
		checkRange(line.Quantity, "Quantity", one, maxQuantity, func(msg string) {
			add(LineField(i, "quantity"), msg)
		})
		checkRange(line.UnitRate, "Rate", decimal.Zero, maxUnitRate, func(msg string) {
			add(LineField(i, "unit_rate"), msg)
		})
		checkRange(line.TaxPercent, "Tax", decimal.Zero, maxTaxPercent, func(msg string) {
			add(LineField(i, "tax_percent"), msg)
		})
	}

	switch {
	case f.discount.Blank():
	case !f.discount.Valid:
		add("discount", "Discount must be a number")
	case f.discount.Value.IsNegative():
		add("discount", "Discount cannot be negative")
	case f.discount.Value.GreaterThan(maxDiscount):
		add("discount", fmt.Sprintf("Discount must be at most %s", maxDiscount))
	}

	return errs
}

func checkRange(in Input, label string, min, max decimal.Decimal, report func(string)) {
	switch {
	case in.Blank():
		report(label + " is required")
	case !in.Valid:
		report(label + " must be a number")
	case in.Value.LessThan(min):
		if min.IsZero() {
			report(label + " cannot be negative")
		} else {
			report(fmt.Sprintf("%s must be at least %s", label, min))
		}
	case in.Value.GreaterThan(max):
		report(fmt.Sprintf("%s must be at most %s", label, max))
	}
}
