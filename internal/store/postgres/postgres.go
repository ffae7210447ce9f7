package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/store"
	"bizdesk/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema applies the embedded schema. Every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const customerColumns = `id, name, number, email, address, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Number, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context, query domain.ListQuery) ([]domain.Customer, int, error) {
	where, args := searchClause(query.Search, "name", "number", "email")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers`+where+`
		ORDER BY lower(name), id`+pageClause(query, len(args)), pageArgs(query, args)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, max(query.Limit, 16))
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (s *Store) ListCustomerOptions(ctx context.Context) ([]domain.CustomerOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM customers
		ORDER BY lower(name), id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make([]domain.CustomerOption, 0, 64)
	for rows.Next() {
		var opt domain.CustomerOption
		if err := rows.Scan(&opt.ID, &opt.Name); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return options, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}

	created, err := scanCustomer(s.db.QueryRowContext(ctx, `
		INSERT INTO customers (id, name, number, email, address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.Number, customer.Email, customer.Address))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	updated, err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, number = $3, email = $4, address = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.Number, customer.Email, customer.Address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM customers WHERE id = $1`, id)
}

const catalogItemColumns = `id, item_name, item_type, sku, part_number, active, description, category, brand_name, tax, cost_price, selling_price, created_at, updated_at`

func scanCatalogItem(row interface{ Scan(...any) error }) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(
		&item.ID, &item.ItemName, &item.ItemType, &item.SKU, &item.PartNumber, &item.Active,
		&item.Description, &item.Category, &item.BrandName,
		&item.Tax, &item.CostPrice, &item.SellingPrice,
		&item.CreatedAt, &item.UpdatedAt,
	)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, err
}

func (s *Store) queryCatalogItems(ctx context.Context, query string, args ...any) ([]domain.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, 64)
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListCatalogItems(ctx context.Context, query domain.ListQuery) ([]domain.CatalogItem, int, error) {
	where, args := searchClause(query.Search, "item_name", "sku", "category")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM catalog_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	items, err := s.queryCatalogItems(ctx, `
		SELECT `+catalogItemColumns+`
		FROM catalog_items`+where+`
		ORDER BY lower(item_name), id`+pageClause(query, len(args)), pageArgs(query, args)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) ListActiveCatalogItems(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.queryCatalogItems(ctx, `
		SELECT `+catalogItemColumns+`
		FROM catalog_items
		WHERE active = true
		ORDER BY lower(item_name), id
	`)
}

func (s *Store) GetCatalogItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	item, err := scanCatalogItem(s.db.QueryRowContext(ctx, `
		SELECT `+catalogItemColumns+`
		FROM catalog_items
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetCatalogItemsByIDs(ctx context.Context, ids []string) (map[string]domain.CatalogItem, error) {
	result := make(map[string]domain.CatalogItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	items, err := s.queryCatalogItems(ctx, `
		SELECT `+catalogItemColumns+`
		FROM catalog_items
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

func (s *Store) CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if strings.TrimSpace(item.ItemName) == "" || strings.TrimSpace(item.SKU) == "" {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}

	created, err := scanCatalogItem(s.db.QueryRowContext(ctx, `
		INSERT INTO catalog_items (
			id, item_name, item_type, sku, part_number, active, description, category, brand_name,
			tax, cost_price, selling_price, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
		RETURNING `+catalogItemColumns,
		item.ID, item.ItemName, item.ItemType, item.SKU, item.PartNumber, item.Active, item.Description,
		item.Category, item.BrandName, item.Tax, item.CostPrice, item.SellingPrice))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &created, nil
}

func (s *Store) UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	updated, err := scanCatalogItem(s.db.QueryRowContext(ctx, `
		UPDATE catalog_items
		SET item_name = $2, item_type = $3, sku = $4, part_number = $5, active = $6, description = $7,
			category = $8, brand_name = $9, tax = $10, cost_price = $11, selling_price = $12, updated_at = now()
		WHERE id = $1
		RETURNING `+catalogItemColumns,
		item.ID, item.ItemName, item.ItemType, item.SKU, item.PartNumber, item.Active, item.Description,
		item.Category, item.BrandName, item.Tax, item.CostPrice, item.SellingPrice))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

func (s *Store) DeleteCatalogItem(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM catalog_items WHERE id = $1`, id)
}

const invoiceColumns = `
	i.id, i.invoice_number, i.customer_id, c.name, i.sales_person, i.invoice_date, i.delivery_date,
	i.description, i.discount, i.subtotal, i.final_amount, i.created_by, i.created_at, i.updated_at`

func scanInvoice(row interface{ Scan(...any) error }) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.SalesPerson,
		&inv.InvoiceDate, &inv.DeliveryDate, &inv.Description,
		&inv.Discount, &inv.Subtotal, &inv.FinalAmount,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	inv.InvoiceDate = inv.InvoiceDate.UTC()
	inv.DeliveryDate = inv.DeliveryDate.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return inv, err
}

func (s *Store) ListInvoices(ctx context.Context, query domain.ListQuery) ([]domain.Invoice, int, error) {
	where, args := searchClause(query.Search, "i.invoice_number", "c.name", "i.sales_person", "i.final_amount::text")
	from := `
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+from+where+`
		ORDER BY i.invoice_number DESC`+pageClause(query, len(args)), pageArgs(query, args)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, max(query.Limit, 16))
	ids := make([]string, 0, cap(invoices))
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	itemsByInvoice, err := loadInvoiceItems(ctx, s.db, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range invoices {
		invoices[i].Items = itemsByInvoice[invoices[i].ID]
	}
	return invoices, total, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

func getInvoice(ctx context.Context, q querier, id string) (*domain.Invoice, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, store.ErrNotFound
	}
	inv, err := scanInvoice(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	itemsByInvoice, err := loadInvoiceItems(ctx, q, []string{inv.ID})
	if err != nil {
		return nil, err
	}
	inv.Items = itemsByInvoice[inv.ID]
	return &inv, nil
}

func loadInvoiceItems(ctx context.Context, q querier, invoiceIDs []string) (map[string][]domain.InvoiceItem, error) {
	result := make(map[string][]domain.InvoiceItem, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return result, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT ii.invoice_id, ii.catalog_item_id, ci.item_name, ii.quantity, ii.unit_rate, ii.tax_percent, ii.line_total
		FROM invoice_items ii
		JOIN catalog_items ci ON ci.id = ii.catalog_item_id
		WHERE ii.invoice_id = ANY($1)
		ORDER BY ii.invoice_id, ii.position
	`, invoiceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID string
		var item domain.InvoiceItem
		if err := rows.Scan(&invoiceID, &item.CatalogItemID, &item.ItemName, &item.Quantity, &item.UnitRate, &item.TaxPercent, &item.LineTotal); err != nil {
			return nil, err
		}
		result[invoiceID] = append(result[invoiceID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var seq int64
	if err := pgTx.QueryRowContext(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return nil, err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, invoice_number, customer_id, sales_person, invoice_date, delivery_date, description,
			discount, subtotal, final_amount, created_by, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
	`, inv.ID, store.FormatInvoiceNumber(seq), inv.CustomerID, inv.SalesPerson, inv.InvoiceDate, inv.DeliveryDate,
		inv.Description, inv.Discount, inv.Subtotal, inv.FinalAmount, inv.CreatedBy)
	if err != nil {
		return nil, mapReferenceError(err)
	}
	if err := insertInvoiceItems(ctx, pgTx, inv.ID, inv.Items); err != nil {
		return nil, err
	}

	created, err := getInvoice(ctx, pgTx, inv.ID)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	res, err := pgTx.ExecContext(ctx, `
		UPDATE invoices
		SET customer_id = $2, sales_person = $3, invoice_date = $4, delivery_date = $5, description = $6,
			discount = $7, subtotal = $8, final_amount = $9, updated_at = now()
		WHERE id = $1
	`, inv.ID, inv.CustomerID, inv.SalesPerson, inv.InvoiceDate, inv.DeliveryDate, inv.Description,
		inv.Discount, inv.Subtotal, inv.FinalAmount)
	if err != nil {
		return nil, mapReferenceError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return nil, err
	}
	if err := insertInvoiceItems(ctx, pgTx, inv.ID, inv.Items); err != nil {
		return nil, err
	}

	updated, err := getInvoice(ctx, pgTx, inv.ID)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func insertInvoiceItems(ctx context.Context, q querier, invoiceID string, items []domain.InvoiceItem) error {
	for position, item := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO invoice_items (invoice_id, position, catalog_item_id, quantity, unit_rate, tax_percent, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, invoiceID, position, item.CatalogItemID, item.Quantity, item.UnitRate, item.TaxPercent, item.LineTotal)
		if err != nil {
			return mapReferenceError(err)
		}
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM invoices WHERE id = $1`, id)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) deleteByID(ctx context.Context, query string, id string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// searchClause builds a case-insensitive OR match of search over columns.
// The search term is always bound as $1.
func searchClause(search string, columns ...string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(columns))
	for _, col := range columns {
		conds = append(conds, col+" ILIKE $1")
	}
	return "\n\t\tWHERE (" + strings.Join(conds, " OR ") + ")", []any{"%" + escapeLike(search) + "%"}
}

func pageClause(query domain.ListQuery, argc int) string {
	if query.Limit < 1 {
		return ""
	}
	return fmt.Sprintf("\n\t\tLIMIT $%d OFFSET $%d", argc+1, argc+2)
}

func pageArgs(query domain.ListQuery, args []any) []any {
	if query.Limit < 1 {
		return args
	}
	return append(args, query.Limit, query.Offset())
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func mapWriteError(err error) error {
	switch {
	case isUniqueViolation(err):
		return store.ErrConflict
	case isCheckViolation(err), isNumericOverflow(err):
		return store.ErrInvalidInput
	default:
		return err
	}
}

// mapReferenceError treats a dangling customer or catalog item reference on
// an invoice write as bad input rather than a server fault.
func mapReferenceError(err error) error {
	if isForeignKeyViolation(err) {
		return store.ErrInvalidInput
	}
	return mapWriteError(err)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == "23514"
}

func isNumericOverflow(err error) bool {
	return pgErrorCode(err) == "22003"
}
