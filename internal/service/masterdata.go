package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/invoice"
)

var (
	maxItemTax   = decimal.NewFromInt(100)
	maxItemPrice = decimal.NewFromInt(1000000)
)

func (s *Service) ListCustomers(ctx context.Context, query domain.ListQuery) (domain.ListPage[domain.Customer], error) {
	query = normalizeListQuery(query)
	customers, total, err := s.repo.ListCustomers(ctx, query)
	if err != nil {
		return domain.ListPage[domain.Customer]{}, err
	}
	return domain.ListPage[domain.Customer]{Items: customers, Total: total, Page: query.Page, Limit: query.Limit}, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Customer{}, err
	}
	req = normalizeCustomerRequest(req)
	if errs, err := s.checkStruct(req); err != nil || len(errs) > 0 {
		return domain.Customer{}, firstError(err, errs)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Number:  req.Number,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.catalog.Invalidate(ctx)
	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerRequest) (domain.Customer, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Customer{}, err
	}
	existing, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	req = normalizeCustomerRequest(req)
	if errs, err := s.checkStruct(req); err != nil || len(errs) > 0 {
		return domain.Customer{}, firstError(err, errs)
	}

	updated := *existing
	updated.Name = req.Name
	updated.Number = req.Number
	updated.Email = req.Email
	updated.Address = req.Address

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.catalog.Invalidate(ctx)
	s.logAudit(ctx, "customer_update", "customer", saved.ID, "name="+saved.Name)
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}

	s.catalog.Invalidate(ctx)
	s.logAudit(ctx, "customer_delete", "customer", id, "")
	return nil
}

func (s *Service) ListCatalogItems(ctx context.Context, query domain.ListQuery) (domain.ListPage[domain.CatalogItem], error) {
	query = normalizeListQuery(query)
	items, total, err := s.repo.ListCatalogItems(ctx, query)
	if err != nil {
		return domain.ListPage[domain.CatalogItem]{}, err
	}
	return domain.ListPage[domain.CatalogItem]{Items: items, Total: total, Page: query.Page, Limit: query.Limit}, nil
}

func (s *Service) GetCatalogItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	item, err := s.repo.GetCatalogItem(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return *item, nil
}

// CatalogSnapshot returns the active items and customers an invoice form
// offers in its pickers.
func (s *Service) CatalogSnapshot(ctx context.Context) (domain.CatalogSnapshot, error) {
	snapshot, err := s.catalog.Load(ctx)
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}
	return *snapshot, nil
}

func (s *Service) CreateCatalogItem(ctx context.Context, req domain.CatalogItemRequest) (domain.CatalogItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CatalogItem{}, err
	}
	item, err := s.buildCatalogItem(req)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if req.Status == nil {
		item.Active = true
	}

	created, err := s.repo.CreateCatalogItem(ctx, item)
	if err != nil {
		return domain.CatalogItem{}, err
	}

	s.catalog.Invalidate(ctx)
	s.logAudit(ctx, "item_create", "catalog_item", created.ID, fmt.Sprintf("sku=%s,price=%s", created.SKU, created.SellingPrice))
	return *created, nil
}

func (s *Service) UpdateCatalogItem(ctx context.Context, id string, req domain.CatalogItemRequest) (domain.CatalogItem, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.CatalogItem{}, err
	}
	existing, err := s.repo.GetCatalogItem(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CatalogItem{}, err
	}
	item, err := s.buildCatalogItem(req)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	item.ID = existing.ID
	if req.Status == nil {
		item.Active = existing.Active
	}

	saved, err := s.repo.UpdateCatalogItem(ctx, item)
	if err != nil {
		return domain.CatalogItem{}, err
	}

	s.catalog.Invalidate(ctx)
	s.logAudit(ctx, "item_update", "catalog_item", saved.ID, fmt.Sprintf("sku=%s,price=%s,active=%t", saved.SKU, saved.SellingPrice, saved.Active))
	return *saved, nil
}

func (s *Service) DeleteCatalogItem(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteCatalogItem(ctx, id); err != nil {
		return err
	}

	s.catalog.Invalidate(ctx)
	s.logAudit(ctx, "item_delete", "catalog_item", id, "")
	return nil
}

func (s *Service) buildCatalogItem(req domain.CatalogItemRequest) (domain.CatalogItem, error) {
	req = normalizeCatalogItemRequest(req)
	errs, err := s.checkStruct(req)
	if err != nil {
		return domain.CatalogItem{}, err
	}

	tax := parseAmount(req.Tax, "tax", maxItemTax, &errs)
	cost := parseAmount(req.CostPrice, "cost_price", maxItemPrice, &errs)
	selling := parseAmount(req.SellingPrice, "selling_price", maxItemPrice, &errs)
	if len(errs) > 0 {
		return domain.CatalogItem{}, errs
	}

	item := domain.CatalogItem{
		ItemName:     req.ItemName,
		ItemType:     defaultString(req.ItemType, domain.DefaultItemType),
		SKU:          req.SKU,
		PartNumber:   req.PartNumber,
		Description:  req.Description,
		Category:     req.Category,
		BrandName:    req.BrandName,
		Tax:          tax,
		CostPrice:    cost,
		SellingPrice: selling,
	}
	if req.Status != nil {
		item.Active = *req.Status
	}
	return item, nil
}

// parseAmount reads a required non-negative decimal no larger than max.
func parseAmount(raw domain.NumberText, field string, max decimal.Decimal, errs *invoice.ValidationErrors) decimal.Decimal {
	label := fieldLabel(field)
	in := invoice.ParseInput(raw.String())
	report := func(message string) {
		*errs = append(*errs, invoice.FieldError{Field: field, Message: message})
	}

	switch {
	case in.Blank():
		report(label + " is required")
	case !in.Valid:
		report(label + " must be a number")
	case in.Value.IsNegative():
		report(label + " cannot be negative")
	case in.Value.GreaterThan(max):
		report(fmt.Sprintf("%s must be at most %s", label, max))
	default:
		return in.Value
	}
	return decimal.Zero
}

func normalizeCustomerRequest(req domain.CustomerRequest) domain.CustomerRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Number = strings.TrimSpace(req.Number)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Address = strings.TrimSpace(req.Address)
	return req
}

func normalizeCatalogItemRequest(req domain.CatalogItemRequest) domain.CatalogItemRequest {
	req.ItemName = strings.TrimSpace(req.ItemName)
	req.ItemType = strings.ToUpper(strings.TrimSpace(req.ItemType))
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.PartNumber = strings.TrimSpace(req.PartNumber)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	req.BrandName = strings.TrimSpace(req.BrandName)
	return req
}

func firstError(err error, errs invoice.ValidationErrors) error {
	if err != nil {
		return err
	}
	return errs
}
