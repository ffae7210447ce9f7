package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("BIZDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BIZDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func TestInvoiceRoundTripKeepsDecimalsAndBlocksReferencedDeletes(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	customerID := fmt.Sprintf("cust-it-%d", stamp)
	itemID := fmt.Sprintf("item-it-%d", stamp)
	invoiceID := fmt.Sprintf("inv-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = $1`, itemID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
	})

	if _, err := s.CreateCustomer(ctx, domain.Customer{ID: customerID, Name: "Integration Co", Number: "9000000001"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := s.CreateCatalogItem(ctx, domain.CatalogItem{
		ID: itemID, ItemName: "IT Widget", ItemType: domain.DefaultItemType, SKU: fmt.Sprintf("IT-%d", stamp),
		PartNumber: "PN-IT", Active: true, Description: "integration", Category: "test", BrandName: "Test",
		Tax: decimal.NewFromInt(18), CostPrice: decimal.NewFromInt(60), SellingPrice: decimal.RequireFromString("100.005"),
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	created, err := s.CreateInvoice(ctx, domain.Invoice{
		ID: invoiceID, CustomerID: customerID, SalesPerson: "Dana",
		InvoiceDate: day, DeliveryDate: day.AddDate(0, 0, 1),
		Items: []domain.InvoiceItem{{
			CatalogItemID: itemID,
			Quantity:      decimal.NewFromInt(3),
			UnitRate:      decimal.NewFromInt(100),
			TaxPercent:    decimal.NewFromInt(18),
			LineTotal:     decimal.RequireFromString("354.00"),
		}},
		Discount:    decimal.NewFromInt(50),
		Subtotal:    decimal.RequireFromString("354.00"),
		FinalAmount: decimal.RequireFromString("304.00"),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.Number == "" || created.CustomerName != "Integration Co" {
		t.Fatalf("unexpected created invoice: %+v", created)
	}
	if len(created.Items) != 1 || !created.Items[0].LineTotal.Equal(decimal.RequireFromString("354")) {
		t.Fatalf("unexpected items: %+v", created.Items)
	}
	if !created.InvoiceDate.Equal(day) {
		t.Fatalf("expected invoice date %s, got %s", day, created.InvoiceDate)
	}

	item, err := s.GetCatalogItem(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if !item.SellingPrice.Equal(decimal.RequireFromString("100.005")) {
		t.Fatalf("expected exact selling price, got %s", item.SellingPrice)
	}

	if err := s.DeleteCustomer(ctx, customerID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting referenced customer, got %v", err)
	}
	if err := s.DeleteCatalogItem(ctx, itemID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting referenced item, got %v", err)
	}

	page, total, err := s.ListInvoices(ctx, domain.ListQuery{Page: 1, Limit: 5, Search: "integration co"})
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if total < 1 || len(page) < 1 {
		t.Fatalf("expected search to find the invoice, total=%d", total)
	}

	if err := s.DeleteInvoice(ctx, invoiceID); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}
	if _, err := s.GetInvoice(ctx, invoiceID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCreateInvoiceRejectsUnknownCustomer(t *testing.T) {
	s := newIntegrationStore(t)

	_, err := s.CreateInvoice(context.Background(), domain.Invoice{
		CustomerID:   fmt.Sprintf("missing-%d", time.Now().UnixNano()),
		SalesPerson:  "Dana",
		InvoiceDate:  time.Now().UTC(),
		DeliveryDate: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateInvoiceRejectsAmountsBeyondColumnPrecision(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	customerID := fmt.Sprintf("cust-ovf-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
	})
	if _, err := s.CreateCustomer(ctx, domain.Customer{ID: customerID, Name: "Overflow Co", Number: "9000000002"}); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.CreateInvoice(ctx, domain.Invoice{
		CustomerID: customerID, SalesPerson: "Dana",
		InvoiceDate: day, DeliveryDate: day,
		Discount:    decimal.RequireFromString("1e17"),
		Subtotal:    decimal.Zero,
		FinalAmount: decimal.RequireFromString("-1e17"),
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for numeric overflow, got %v", err)
	}
}

func TestMapWriteErrorTreatsNumericOverflowAsInvalidInput(t *testing.T) {
	err := fmt.Errorf("insert invoice: %w", &pgconn.PgError{Code: "22003"})
	if got := mapReferenceError(err); !errors.Is(got, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", got)
	}
	if got := mapWriteError(&pgconn.PgError{Code: "23505"}); !errors.Is(got, store.ErrConflict) {
		t.Fatalf("expected conflict for unique violation, got %v", got)
	}
}
