// Package invoice holds the line-item engine behind the invoice form: an
// ordered list of line items plus a discount, with every derived total
// recomputed eagerly after each edit.
//
// A Form is owned by a single session and is not safe for concurrent use;
// callers process one user event at a time.
package invoice

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Field string

const (
	FieldQuantity   Field = "quantity"
	FieldUnitRate   Field = "unit_rate"
	FieldTaxPercent Field = "tax_percent"
)

// LineItem is one editable row. LineTotal is derived and kept unrounded.
type LineItem struct {
	CatalogItemID string          `json:"catalog_item_id"`
	Quantity      Input           `json:"quantity"`
	UnitRate      Input           `json:"unit_rate"`
	TaxPercent    Input           `json:"tax_percent"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

func DefaultLine() LineItem {
	return LineItem{
		Quantity:   NumberInput(one),
		UnitRate:   NumberInput(decimal.Zero),
		TaxPercent: NumberInput(decimal.Zero),
		LineTotal:  decimal.Zero,
	}
}

// DisplayTotal is the line total rounded for presentation.
func (l LineItem) DisplayTotal() decimal.Decimal {
	return Round2(l.LineTotal)
}

type Header struct {
	CustomerID   string    `json:"customer_id"`
	SalesPerson  string    `json:"sales_person"`
	InvoiceDate  time.Time `json:"invoice_date"`
	DeliveryDate time.Time `json:"delivery_date"`
	Description  string    `json:"description"`
}

// Line is a frozen line item as stored and submitted.
type Line struct {
	CatalogItemID string          `json:"catalog_item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitRate      decimal.Decimal `json:"unit_rate"`
	TaxPercent    decimal.Decimal `json:"tax_percent"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// Invoice is a previously persisted invoice used to hydrate an edit session.
type Invoice struct {
	ID       string
	Header   Header
	Lines    []Line
	Discount decimal.Decimal
}

// Payload is the immutable result of a successful submit. InvoiceID is empty
// when the session started from a new invoice.
type Payload struct {
	InvoiceID   string          `json:"invoice_id,omitempty"`
	Header      Header          `json:"header"`
	Lines       []Line          `json:"lines"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

type (
	SubmitFunc func(ctx context.Context, payload Payload) error
	CancelFunc func()
)

type Form struct {
	catalog   Catalog
	invoiceID string
	header    Header
	lines     []LineItem
	discount  Input
	totals    Totals
	closed    bool
}

type Option func(*Form)

// WithNewInvoiceDefaults pre-fills the sales person, an invoice date of today
// and a delivery date of tomorrow. It has no effect on edit sessions.
func WithNewInvoiceDefaults(salesPerson string, today time.Time) Option {
	return func(f *Form) {
		if f.invoiceID != "" {
			return
		}
		f.header.SalesPerson = strings.TrimSpace(salesPerson)
		if !today.IsZero() {
			f.header.InvoiceDate = StartOfDay(today)
			f.header.DeliveryDate = StartOfDay(today).AddDate(0, 0, 1)
		}
	}
}

// NewForm starts a session. With a nil initial invoice the form holds one
// default line and a zero discount; otherwise it is hydrated from initial.
func NewForm(catalog Catalog, initial *Invoice, opts ...Option) *Form {
	if catalog == nil {
		catalog = Snapshot(nil)
	}
	f := &Form{catalog: catalog}

	if initial == nil {
		f.lines = []LineItem{DefaultLine()}
		f.discount = NumberInput(decimal.Zero)
	} else {
		f.invoiceID = initial.ID
		f.header = normalizeHeader(initial.Header)
		f.lines = make([]LineItem, 0, len(initial.Lines))
		for _, line := range initial.Lines {
			f.lines = append(f.lines, LineItem{
				CatalogItemID: line.CatalogItemID,
				Quantity:      NumberInput(line.Quantity),
				UnitRate:      NumberInput(line.UnitRate),
				TaxPercent:    NumberInput(line.TaxPercent),
			})
		}
		f.discount = NumberInput(initial.Discount)
	}

	for _, opt := range opts {
		opt(f)
	}
	f.recompute()
	return f
}

func (f *Form) InvoiceID() string { return f.invoiceID }
func (f *Form) Header() Header    { return f.header }
func (f *Form) Discount() Input   { return f.discount }
func (f *Form) Totals() Totals    { return f.totals }
func (f *Form) Closed() bool      { return f.closed }
func (f *Form) Len() int          { return len(f.lines) }

func (f *Form) Lines() []LineItem {
	return slices.Clone(f.lines)
}

func (f *Form) ValidIndex(index int) bool {
	return index >= 0 && index < len(f.lines)
}

func (f *Form) SetCustomer(customerID string) {
	if f.closed {
		return
	}
	f.header.CustomerID = strings.TrimSpace(customerID)
}

func (f *Form) SetSalesPerson(name string) {
	if f.closed {
		return
	}
	f.header.SalesPerson = name
}

func (f *Form) SetInvoiceDate(date time.Time) {
	if f.closed {
		return
	}
	f.header.InvoiceDate = StartOfDay(date)
}

func (f *Form) SetDeliveryDate(date time.Time) {
	if f.closed {
		return
	}
	f.header.DeliveryDate = StartOfDay(date)
}

func (f *Form) SetDescription(description string) {
	if f.closed {
		return
	}
	f.header.Description = description
}

func (f *Form) AddLine() {
	if f.closed {
		return
	}
	f.lines = append(f.lines, DefaultLine())
	f.recompute()
}

// RemoveLine deletes the line at index, or resets it to defaults when it is
// the only line left. Out-of-range indexes are ignored.
func (f *Form) RemoveLine(index int) {
	if f.closed || !f.ValidIndex(index) {
		return
	}
	if len(f.lines) == 1 {
		f.lines[0] = DefaultLine()
	} else {
		f.lines = slices.Delete(f.lines, index, index+1)
	}
	f.recompute()
}

// SelectCatalogItem sets the line's item and, when the catalog knows it,
// overwrites rate and tax with the catalog's current values. On a lookup
// miss the selection is still kept and rate/tax are left as they were.
func (f *Form) SelectCatalogItem(index int, catalogItemID string) {
	if f.closed || !f.ValidIndex(index) {
		return
	}
	line := &f.lines[index]
	line.CatalogItemID = strings.TrimSpace(catalogItemID)
	if item, ok := f.catalog.Lookup(line.CatalogItemID); ok {
		line.UnitRate = NumberInput(item.UnitPrice)
		line.TaxPercent = NumberInput(item.TaxPercent)
	}
	f.recompute()
}

// EditField stores raw as typed. Unparsable values are kept for display and
// reported by Validate.
func (f *Form) EditField(index int, field Field, raw string) {
	if f.closed || !f.ValidIndex(index) {
		return
	}
	line := &f.lines[index]
	switch field {
	case FieldQuantity:
		line.Quantity = ParseInput(raw)
	case FieldUnitRate:
		line.UnitRate = ParseInput(raw)
	case FieldTaxPercent:
		line.TaxPercent = ParseInput(raw)
	default:
		return
	}
	f.recompute()
}

func (f *Form) SetDiscount(raw string) {
	if f.closed {
		return
	}
	f.discount = ParseInput(raw)
	f.recompute()
}

// BlurDiscount normalises an empty, zero or unparsable discount to 0. It is
// meant to run when the discount field loses focus, not on every keystroke.
func (f *Form) BlurDiscount() {
	if f.closed {
		return
	}
	if f.discount.Valid && !f.discount.Value.IsZero() {
		return
	}
	f.discount = NumberInput(decimal.Zero)
	f.recompute()
}

// Submit validates the form and, when it is clean, freezes it into a Payload
// and hands it to submit. A rejected submission leaves the form open and
// unchanged so the user can correct and retry.
func (f *Form) Submit(ctx context.Context, submit SubmitFunc) (Payload, error) {
	if f.closed {
		return Payload{}, ErrFormClosed
	}
	f.recompute()
	if errs := f.Validate(); len(errs) > 0 {
		return Payload{}, errs
	}

	payload := f.freeze()
	if submit != nil {
		if err := submit(ctx, payload); err != nil {
			return Payload{}, fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
		}
	}
	f.closed = true
	return payload, nil
}

// Cancel abandons the session. The callback runs at most once.
func (f *Form) Cancel(cancel CancelFunc) {
	if f.closed {
		return
	}
	f.closed = true
	if cancel != nil {
		cancel()
	}
}

func (f *Form) recompute() {
	f.lines, f.totals = ComputeTotals(f.lines, f.discount)
}

func (f *Form) freeze() Payload {
	lines := make([]Line, 0, len(f.lines))
	for _, line := range f.lines {
		lines = append(lines, Line{
			CatalogItemID: line.CatalogItemID,
			Quantity:      line.Quantity.Value,
			UnitRate:      line.UnitRate.Value,
			TaxPercent:    line.TaxPercent.Value,
			LineTotal:     line.DisplayTotal(),
		})
	}
	header := f.header
	header.SalesPerson = strings.TrimSpace(header.SalesPerson)

	return Payload{
		InvoiceID:   f.invoiceID,
		Header:      header,
		Lines:       lines,
		Discount:    f.discount.amount(),
		Subtotal:    f.totals.Subtotal,
		FinalAmount: f.totals.FinalAmount,
	}
}

// StartOfDay truncates t to midnight UTC. The zero time stays zero.
func StartOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeHeader(h Header) Header {
	h.CustomerID = strings.TrimSpace(h.CustomerID)
	h.InvoiceDate = StartOfDay(h.InvoiceDate)
	h.DeliveryDate = StartOfDay(h.DeliveryDate)
	return h
}
