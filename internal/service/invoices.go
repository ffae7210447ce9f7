package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"bizdesk/backend/internal/catalog"
	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/invoice"
	"bizdesk/backend/internal/metrics"
	"bizdesk/backend/internal/store"
)

func (s *Service) ListInvoices(ctx context.Context, query domain.ListQuery) (domain.ListPage[domain.Invoice], error) {
	query = normalizeListQuery(query)
	invoices, total, err := s.repo.ListInvoices(ctx, query)
	if err != nil {
		return domain.ListPage[domain.Invoice]{}, err
	}
	return domain.ListPage[domain.Invoice]{Items: invoices, Total: total, Page: query.Page, Limit: query.Limit}, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Invoice{}, err
	}
	return *inv, nil
}

// CreateInvoice runs the request through an invoice form exactly as a user
// session would and persists the submitted payload.
func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (domain.Invoice, error) {
	form, refErrs, err := s.formFromRequest(ctx, nil, req)
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.submitForm(ctx, form, refErrs)
}

// UpdateInvoice replaces the lines of an existing invoice. Blank header
// fields and a blank discount keep their stored values.
func (s *Service) UpdateInvoice(ctx context.Context, id string, req domain.InvoiceRequest) (domain.Invoice, error) {
	existing, err := s.repo.GetInvoice(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Invoice{}, err
	}
	form, refErrs, err := s.formFromRequest(ctx, existing, req)
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.submitForm(ctx, form, refErrs)
}

// PreviewInvoice computes totals and validation for a request without
// persisting anything.
func (s *Service) PreviewInvoice(ctx context.Context, req domain.InvoiceRequest) (domain.InvoicePreview, error) {
	form, refErrs, err := s.formFromRequest(ctx, nil, req)
	if err != nil {
		return domain.InvoicePreview{}, err
	}
	errs := append(form.Validate(), refErrs...)
	totals := form.Totals()
	return domain.InvoicePreview{
		Items:       form.Lines(),
		Subtotal:    totals.Subtotal,
		FinalAmount: totals.FinalAmount,
		Valid:       len(errs) == 0,
		Errors:      errs,
	}, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "invoice_delete", "invoice", id, "")
	return nil
}

func (s *Service) formFromRequest(ctx context.Context, existing *domain.Invoice, req domain.InvoiceRequest) (*invoice.Form, invoice.ValidationErrors, error) {
	snapshot, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	items, refErrs, err := s.resolveItems(ctx, snapshot, req.Items, existing)
	if err != nil {
		return nil, nil, err
	}

	var form *invoice.Form
	if existing == nil {
		form = invoice.NewForm(items, &invoice.Invoice{}, invoice.WithNewInvoiceDefaults(s.salesPersonFor(ctx), s.now()))
	} else {
		seed := existing.Seed()
		seed.Lines = nil
		form = invoice.NewForm(items, seed)
	}

	if strings.TrimSpace(req.CustomerID) != "" {
		form.SetCustomer(req.CustomerID)
	}
	if strings.TrimSpace(req.SalesPerson) != "" {
		form.SetSalesPerson(req.SalesPerson)
	}
	if strings.TrimSpace(req.InvoiceDate) != "" {
		form.SetInvoiceDate(parseDate(req.InvoiceDate))
	}
	if strings.TrimSpace(req.DeliveryDate) != "" {
		form.SetDeliveryDate(parseDate(req.DeliveryDate))
	}
	if existing == nil || strings.TrimSpace(req.Description) != "" {
		form.SetDescription(req.Description)
	}

	for i, line := range req.Items {
		form.AddLine()
		form.SelectCatalogItem(i, line.CatalogItemID)
		if line.Quantity != nil {
			form.EditField(i, invoice.FieldQuantity, line.Quantity.String())
		}
		if line.UnitRate != nil {
			form.EditField(i, invoice.FieldUnitRate, line.UnitRate.String())
		}
		if line.TaxPercent != nil {
			form.EditField(i, invoice.FieldTaxPercent, line.TaxPercent.String())
		}
	}
	if strings.TrimSpace(req.Discount.String()) != "" {
		form.SetDiscount(req.Discount.String())
	}

	customerErrs, err := s.checkCustomer(ctx, snapshot, form.Header().CustomerID)
	if err != nil {
		return nil, nil, err
	}
	return form, append(refErrs, customerErrs...), nil
}

// resolveItems extends the snapshot with requested items it does not hold.
// Inactive items are accepted only when the stored invoice already uses them.
func (s *Service) resolveItems(ctx context.Context, snapshot *domain.CatalogSnapshot, lines []domain.InvoiceItemRequest, existing *domain.Invoice) (invoice.Snapshot, invoice.ValidationErrors, error) {
	known := invoice.Snapshot(slices.Clone(snapshot.Items))

	var missing []string
	for _, line := range lines {
		id := strings.TrimSpace(line.CatalogItemID)
		if id == "" {
			continue
		}
		if _, ok := known.Lookup(id); !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return known, nil, nil
	}

	found, err := s.repo.GetCatalogItemsByIDs(ctx, missing)
	if err != nil {
		return nil, nil, err
	}
	stored := make(map[string]bool)
	if existing != nil {
		for _, item := range existing.Items {
			stored[item.CatalogItemID] = true
		}
	}

	var errs invoice.ValidationErrors
	extended := known
	for i, line := range lines {
		id := strings.TrimSpace(line.CatalogItemID)
		if id == "" || !slices.Contains(missing, id) {
			continue
		}
		item, ok := found[id]
		switch {
		case !ok:
			errs = append(errs, invoice.FieldError{Field: invoice.LineField(i, "catalog_item_id"), Message: "Item not found"})
		case !item.Active && !stored[id]:
			errs = append(errs, invoice.FieldError{Field: invoice.LineField(i, "catalog_item_id"), Message: "Item is inactive"})
		default:
			if _, ok := extended.Lookup(id); !ok {
				extended = append(extended, item.Option())
			}
		}
	}
	return extended, errs, nil
}

func (s *Service) checkCustomer(ctx context.Context, snapshot *domain.CatalogSnapshot, customerID string) (invoice.ValidationErrors, error) {
	if customerID == "" || catalog.HasCustomer(snapshot, customerID) {
		return nil, nil
	}
	_, err := s.repo.GetCustomer(ctx, customerID)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, store.ErrNotFound):
		return invoice.ValidationErrors{{Field: "customer_id", Message: "Customer not found"}}, nil
	default:
		return nil, err
	}
}

// submitForm validates and submits form, persisting the payload through the
// repository. Reference failures found outside the form are reported together
// with the form's own validation errors.
func (s *Service) submitForm(ctx context.Context, form *invoice.Form, refErrs invoice.ValidationErrors) (domain.Invoice, error) {
	mode := metrics.ModeCreate
	if form.InvoiceID() != "" {
		mode = metrics.ModeUpdate
	}

	if errs := append(form.Validate(), refErrs...); len(errs) > 0 {
		s.recordValidationFailures(errs)
		return domain.Invoice{}, errs
	}

	actor, _ := ActorFromContext(ctx)
	var saved *domain.Invoice
	_, err := form.Submit(ctx, func(ctx context.Context, payload invoice.Payload) error {
		record := domain.InvoiceFromPayload(payload)
		var err error
		if payload.InvoiceID == "" {
			record.CreatedBy = actor.Username
			saved, err = s.repo.CreateInvoice(ctx, record)
		} else {
			saved, err = s.repo.UpdateInvoice(ctx, record)
		}
		return err
	})
	if err != nil {
		var errs invoice.ValidationErrors
		if errors.As(err, &errs) {
			s.recordValidationFailures(errs)
			return domain.Invoice{}, errs
		}
		if errors.Is(err, invoice.ErrSubmissionRejected) {
			s.metrics.RecordRejection(mode)
			s.logger.Warn("invoice submission rejected",
				zap.String("mode", mode),
				zap.String("invoice_id", form.InvoiceID()),
				zap.Error(err),
			)
		}
		return domain.Invoice{}, err
	}

	s.metrics.RecordSubmission(mode)
	s.logAudit(ctx, "invoice_"+mode, "invoice", saved.ID, fmt.Sprintf("number=%s,final_amount=%s", saved.Number, saved.FinalAmount.StringFixed(2)))
	return *saved, nil
}

func (s *Service) recordValidationFailures(errs invoice.ValidationErrors) {
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field)
	}
	s.metrics.RecordValidationFailures(fields)
}

func (s *Service) salesPersonFor(ctx context.Context) string {
	if s.defaultSalesPerson != "" {
		return s.defaultSalesPerson
	}
	actor, _ := ActorFromContext(ctx)
	return actor.Username
}
