package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizdesk/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict covers duplicate keys and deletes blocked by references.
	ErrConflict = errors.New("conflict")
)

type Repository interface {
	ListCustomers(ctx context.Context, query domain.ListQuery) ([]domain.Customer, int, error)
	ListCustomerOptions(ctx context.Context) ([]domain.CustomerOption, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListCatalogItems(ctx context.Context, query domain.ListQuery) ([]domain.CatalogItem, int, error)
	ListActiveCatalogItems(ctx context.Context) ([]domain.CatalogItem, error)
	GetCatalogItem(ctx context.Context, id string) (*domain.CatalogItem, error)
	GetCatalogItemsByIDs(ctx context.Context, ids []string) (map[string]domain.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	DeleteCatalogItem(ctx context.Context, id string) error

	ListInvoices(ctx context.Context, query domain.ListQuery) ([]domain.Invoice, int, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	// CreateInvoice assigns the next sequential invoice number.
	CreateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// FormatInvoiceNumber renders the human-readable invoice number for seq.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%06d", seq)
}
