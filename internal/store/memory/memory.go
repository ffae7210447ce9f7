package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/store"
	"bizdesk/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	customers       map[string]domain.Customer
	items           map[string]domain.CatalogItem
	invoices        map[string]domain.Invoice
	invoiceSeq      int64
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; when
// unset, dev defaults are used and a warning is logged. The postgres store is
// used whenever DATABASE_URL is set, so these never reach production.
func seedUsers(logger *zap.Logger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store pre-filled with demo users, customers and items.
func NewSeeded(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()

	customers := []domain.Customer{
		{ID: "cust-acme", Name: "Acme Traders", Number: "9876543210", Email: "billing@acme.example", Address: "12 Harbour Road"},
		{ID: "cust-globex", Name: "Globex Retail", Number: "9123456780", Email: "accounts@globex.example"},
		{ID: "cust-initech", Name: "Initech Services", Number: "9012345678"},
	}
	items := []domain.CatalogItem{
		{ID: "item-widget", ItemName: "Steel Widget", SKU: "WID-001", PartNumber: "PN-1001", Category: "hardware", BrandName: "Forge", Description: "Galvanised steel widget", Tax: decimal.NewFromInt(18), CostPrice: decimal.NewFromInt(70), SellingPrice: decimal.NewFromInt(100)},
		{ID: "item-bracket", ItemName: "Mounting Bracket", SKU: "BRK-002", PartNumber: "PN-2002", Category: "hardware", BrandName: "Forge", Description: "Wall mounting bracket", Tax: decimal.NewFromInt(5), CostPrice: decimal.NewFromInt(180), SellingPrice: decimal.NewFromInt(250)},
		{ID: "item-install", ItemName: "Installation", ItemType: "SERVICE", SKU: "SVC-INSTALL", PartNumber: "N/A", Category: "services", BrandName: "In-house", Description: "On-site installation per hour", Tax: decimal.NewFromInt(18), CostPrice: decimal.Zero, SellingPrice: decimal.RequireFromString("45.50")},
	}

	s := &Store{
		customers:       make(map[string]domain.Customer, len(customers)),
		items:           make(map[string]domain.CatalogItem, len(items)),
		invoices:        make(map[string]domain.Invoice),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(logger),
	}
	for _, c := range customers {
		c.CreatedAt, c.UpdatedAt = now, now
		s.customers[c.ID] = c
	}
	for _, item := range items {
		if item.ItemType == "" {
			item.ItemType = domain.DefaultItemType
		}
		item.Active = true
		item.CreatedAt, item.UpdatedAt = now, now
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) ListCustomers(_ context.Context, query domain.ListQuery) ([]domain.Customer, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query.Search))
	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if needle != "" && !containsAny(needle, c.Name, c.Number, c.Email) {
			continue
		}
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		if a.Name == b.Name {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return paginate(result, query), len(result), nil
}

func (s *Store) ListCustomerOptions(_ context.Context) ([]domain.CustomerOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	options := make([]domain.CustomerOption, 0, len(s.customers))
	for _, c := range s.customers {
		options = append(options, domain.CustomerOption{ID: c.ID, Name: c.Name})
	}
	slices.SortFunc(options, func(a, b domain.CustomerOption) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return options, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	customer.CreatedAt, customer.UpdatedAt = now, now
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, inv := range s.invoices {
		if inv.CustomerID == id {
			return store.ErrConflict
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListCatalogItems(_ context.Context, query domain.ListQuery) ([]domain.CatalogItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query.Search))
	result := make([]domain.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		if needle != "" && !containsAny(needle, item.ItemName, item.SKU, item.Category) {
			continue
		}
		result = append(result, item)
	}
	sortItems(result)
	return paginate(result, query), len(result), nil
}

func (s *Store) ListActiveCatalogItems(_ context.Context) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CatalogItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Active {
			result = append(result, item)
		}
	}
	sortItems(result)
	return result, nil
}

func (s *Store) GetCatalogItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetCatalogItemsByIDs(_ context.Context, ids []string) (map[string]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.CatalogItem, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) CreateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(item.ItemName) == "" || strings.TrimSpace(item.SKU) == "" {
		return nil, store.ErrInvalidInput
	}
	if s.skuTakenLocked(item.SKU, "") {
		return nil, store.ErrConflict
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) UpdateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.skuTakenLocked(item.SKU, item.ID) {
		return nil, store.ErrConflict
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) DeleteCatalogItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	for _, inv := range s.invoices {
		for _, line := range inv.Items {
			if line.CatalogItemID == id {
				return store.ErrConflict
			}
		}
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListInvoices(_ context.Context, query domain.ListQuery) ([]domain.Invoice, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query.Search))
	result := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		inv = s.decorateLocked(inv)
		if needle != "" && !containsAny(needle, inv.Number, inv.CustomerName, inv.SalesPerson, inv.FinalAmount.StringFixed(2)) {
			continue
		}
		result = append(result, inv)
	}
	slices.SortFunc(result, func(a, b domain.Invoice) int {
		return cmpString(b.Number, a.Number)
	})
	return paginate(result, query), len(result), nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	inv = s.decorateLocked(inv)
	return &inv, nil
}

func (s *Store) CreateInvoice(_ context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReferencesLocked(inv); err != nil {
		return nil, err
	}
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if _, exists := s.invoices[inv.ID]; exists {
		return nil, store.ErrConflict
	}
	s.invoiceSeq++
	inv.Number = store.FormatInvoiceNumber(s.invoiceSeq)
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	inv.Items = slices.Clone(inv.Items)
	s.invoices[inv.ID] = inv

	created := s.decorateLocked(inv)
	return &created, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.invoices[inv.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := s.checkReferencesLocked(inv); err != nil {
		return nil, err
	}
	inv.Number = existing.Number
	inv.CreatedBy = existing.CreatedBy
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()
	inv.Items = slices.Clone(inv.Items)
	s.invoices[inv.ID] = inv

	updated := s.decorateLocked(inv)
	return &updated, nil
}

func (s *Store) DeleteInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.invoices, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) checkReferencesLocked(inv domain.Invoice) error {
	if _, ok := s.customers[inv.CustomerID]; !ok {
		return store.ErrInvalidInput
	}
	for _, line := range inv.Items {
		if _, ok := s.items[line.CatalogItemID]; !ok {
			return store.ErrInvalidInput
		}
	}
	return nil
}

// decorateLocked fills display-only names the way the postgres joins do.
func (s *Store) decorateLocked(inv domain.Invoice) domain.Invoice {
	inv.CustomerName = s.customers[inv.CustomerID].Name
	items := make([]domain.InvoiceItem, len(inv.Items))
	for i, line := range inv.Items {
		line.ItemName = s.items[line.CatalogItemID].ItemName
		items[i] = line
	}
	inv.Items = items
	return inv
}

func (s *Store) skuTakenLocked(sku string, exceptID string) bool {
	for id, item := range s.items {
		if id != exceptID && strings.EqualFold(item.SKU, sku) {
			return true
		}
	}
	return false
}

func sortItems(items []domain.CatalogItem) {
	slices.SortFunc(items, func(a, b domain.CatalogItem) int {
		if a.ItemName == b.ItemName {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(strings.ToLower(a.ItemName), strings.ToLower(b.ItemName))
	})
}

func paginate[T any](rows []T, query domain.ListQuery) []T {
	if query.Limit < 1 {
		return rows
	}
	start := query.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := min(start+query.Limit, len(rows))
	return rows[start:end]
}

func containsAny(needle string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
