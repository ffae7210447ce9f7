package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bizdesk/backend/internal/invoice"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"

	DefaultItemType = "PRODUCT"
)

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Number    string    `json:"number"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CustomerRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Number  string `json:"number" validate:"required,len=10,numeric"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Address string `json:"address" validate:"max=500"`
}

// CustomerOption is the id/name pair the invoice form offers in its
// customer picker.
type CustomerOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogItem is an item-master record.
type CatalogItem struct {
	ID           string          `json:"id"`
	ItemName     string          `json:"item_name"`
	ItemType     string          `json:"item_type"`
	SKU          string          `json:"sku"`
	PartNumber   string          `json:"part_number"`
	Active       bool            `json:"status"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	BrandName    string          `json:"brand_name"`
	Tax          decimal.Decimal `json:"tax"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Option projects an item onto what the invoice engine reads.
func (c CatalogItem) Option() invoice.CatalogItem {
	return invoice.CatalogItem{
		ID:          c.ID,
		DisplayName: c.ItemName,
		UnitPrice:   c.SellingPrice,
		TaxPercent:  c.Tax,
	}
}

type CatalogItemRequest struct {
	ItemName     string     `json:"item_name" validate:"required,max=160"`
	ItemType     string     `json:"item_type" validate:"omitempty,oneof=PRODUCT SERVICE"`
	SKU          string     `json:"sku" validate:"required,max=64"`
	PartNumber   string     `json:"part_number" validate:"required,max=64"`
	Status       *bool      `json:"status"`
	Description  string     `json:"description" validate:"required,max=1000"`
	Category     string     `json:"category" validate:"required,max=80"`
	BrandName    string     `json:"brand_name" validate:"required,max=80"`
	Tax          NumberText `json:"tax"`
	CostPrice    NumberText `json:"cost_price"`
	SellingPrice NumberText `json:"selling_price"`
}

type InvoiceItem struct {
	CatalogItemID string          `json:"catalog_item_id"`
	ItemName      string          `json:"item_name,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitRate      decimal.Decimal `json:"unit_rate"`
	TaxPercent    decimal.Decimal `json:"tax_percent"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

type Invoice struct {
	ID           string          `json:"id"`
	Number       string          `json:"invoice_number"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	SalesPerson  string          `json:"sales_person"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	DeliveryDate time.Time       `json:"delivery_date"`
	Description  string          `json:"description"`
	Items        []InvoiceItem   `json:"items"`
	Discount     decimal.Decimal `json:"discount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	CreatedBy    string          `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Seed converts a persisted invoice into the engine's hydration input.
func (inv Invoice) Seed() *invoice.Invoice {
	lines := make([]invoice.Line, 0, len(inv.Items))
	for _, item := range inv.Items {
		lines = append(lines, invoice.Line{
			CatalogItemID: item.CatalogItemID,
			Quantity:      item.Quantity,
			UnitRate:      item.UnitRate,
			TaxPercent:    item.TaxPercent,
			LineTotal:     item.LineTotal,
		})
	}
	return &invoice.Invoice{
		ID: inv.ID,
		Header: invoice.Header{
			CustomerID:   inv.CustomerID,
			SalesPerson:  inv.SalesPerson,
			InvoiceDate:  inv.InvoiceDate,
			DeliveryDate: inv.DeliveryDate,
			Description:  inv.Description,
		},
		Lines:    lines,
		Discount: inv.Discount,
	}
}

// InvoiceFromPayload builds the record to persist from a submitted form.
func InvoiceFromPayload(p invoice.Payload) Invoice {
	items := make([]InvoiceItem, 0, len(p.Lines))
	for _, line := range p.Lines {
		items = append(items, InvoiceItem{
			CatalogItemID: line.CatalogItemID,
			Quantity:      line.Quantity,
			UnitRate:      line.UnitRate,
			TaxPercent:    line.TaxPercent,
			LineTotal:     line.LineTotal,
		})
	}
	return Invoice{
		ID:           p.InvoiceID,
		CustomerID:   p.Header.CustomerID,
		SalesPerson:  p.Header.SalesPerson,
		InvoiceDate:  p.Header.InvoiceDate,
		DeliveryDate: p.Header.DeliveryDate,
		Description:  strings.TrimSpace(p.Header.Description),
		Items:        items,
		Discount:     p.Discount,
		Subtotal:     p.Subtotal,
		FinalAmount:  p.FinalAmount,
	}
}

// InvoiceItemRequest carries one line as the client typed it. Numeric fields
// that are omitted keep whatever selecting the catalog item filled in.
type InvoiceItemRequest struct {
	CatalogItemID string      `json:"catalog_item_id"`
	Quantity      *NumberText `json:"quantity,omitempty"`
	UnitRate      *NumberText `json:"unit_rate,omitempty"`
	TaxPercent    *NumberText `json:"tax_percent,omitempty"`
}

type InvoiceRequest struct {
	CustomerID   string               `json:"customer_id"`
	SalesPerson  string               `json:"sales_person"`
	InvoiceDate  string               `json:"invoice_date"`
	DeliveryDate string               `json:"delivery_date"`
	Description  string               `json:"description"`
	Items        []InvoiceItemRequest `json:"items"`
	Discount     NumberText           `json:"discount"`
}

type InvoicePreview struct {
	Items       []invoice.LineItem       `json:"items"`
	Subtotal    decimal.Decimal          `json:"subtotal"`
	FinalAmount decimal.Decimal          `json:"final_amount"`
	Valid       bool                     `json:"valid"`
	Errors      invoice.ValidationErrors `json:"errors,omitempty"`
}

// CatalogSnapshot is the read-only data an invoice form session works
// against: active catalog items projected for the engine, plus customers.
type CatalogSnapshot struct {
	Items     []invoice.CatalogItem `json:"items"`
	Customers []CustomerOption      `json:"customers"`
	LoadedAt  time.Time             `json:"loaded_at"`
}

// InvoiceDraft is a server-held form session. The catalog and customer lists
// are snapshotted when the draft opens and reused for every event.
type InvoiceDraft struct {
	ID        string                   `json:"id"`
	Form      invoice.State            `json:"form"`
	Catalog   []invoice.CatalogItem    `json:"catalog"`
	Customers []CustomerOption         `json:"customers"`
	Errors    invoice.ValidationErrors `json:"errors,omitempty"`
	CreatedBy string                   `json:"created_by"`
	CreatedAt time.Time                `json:"created_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

type DraftCreateRequest struct {
	InvoiceID string `json:"invoice_id,omitempty"`
}

const (
	EventAddLine         = "add_line"
	EventRemoveLine      = "remove_line"
	EventSelectItem      = "select_item"
	EventEditField       = "edit_field"
	EventSetDiscount     = "set_discount"
	EventBlurDiscount    = "blur_discount"
	EventSetCustomer     = "set_customer"
	EventSetSalesPerson  = "set_sales_person"
	EventSetInvoiceDate  = "set_invoice_date"
	EventSetDeliveryDate = "set_delivery_date"
	EventSetDescription  = "set_description"
	EventValidate        = "validate"
)

type DraftEvent struct {
	Type  string     `json:"type" validate:"required,oneof=add_line remove_line select_item edit_field set_discount blur_discount set_customer set_sales_person set_invoice_date set_delivery_date set_description validate"`
	Index *int       `json:"index,omitempty"`
	Field string     `json:"field,omitempty"`
	Value NumberText `json:"value"`
}

type DraftSubmitResponse struct {
	Invoice Invoice `json:"invoice"`
	Created bool    `json:"created"`
}

// NumberText is a numeric form value as sent by the client. It accepts a JSON
// number or a JSON string and keeps the text verbatim so that non-numeric
// input can be reported by validation instead of failing to decode.
type NumberText string

func (n *NumberText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*n = NumberText(text)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected number or string: %w", err)
	}
	*n = NumberText(num.String())
	return nil
}

func (n NumberText) String() string {
	return string(n)
}

type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

func (q ListQuery) Offset() int {
	if q.Page < 2 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

type ListPage[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
}

type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
