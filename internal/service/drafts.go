package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/invoice"
	"bizdesk/backend/internal/store"
	"bizdesk/backend/internal/xid"
)

const (
	draftEventOpen   = "open"
	draftEventSubmit = "submit"
	draftEventCancel = "cancel"
)

// OpenDraft starts a server-held form session, either blank or hydrated from
// an existing invoice. The catalog snapshot is fixed for the draft's lifetime.
func (s *Service) OpenDraft(ctx context.Context, req domain.DraftCreateRequest) (domain.InvoiceDraft, error) {
	snapshot, err := s.catalog.Load(ctx)
	if err != nil {
		return domain.InvoiceDraft{}, err
	}

	var form *invoice.Form
	var items invoice.Snapshot
	if id := strings.TrimSpace(req.InvoiceID); id != "" {
		existing, err := s.repo.GetInvoice(ctx, id)
		if err != nil {
			return domain.InvoiceDraft{}, err
		}
		lines := make([]domain.InvoiceItemRequest, 0, len(existing.Items))
		for _, item := range existing.Items {
			lines = append(lines, domain.InvoiceItemRequest{CatalogItemID: item.CatalogItemID})
		}
		items, _, err = s.resolveItems(ctx, snapshot, lines, existing)
		if err != nil {
			return domain.InvoiceDraft{}, err
		}
		form = invoice.NewForm(items, existing.Seed())
	} else {
		items, _, err = s.resolveItems(ctx, snapshot, nil, nil)
		if err != nil {
			return domain.InvoiceDraft{}, err
		}
		form = invoice.NewForm(items, nil, invoice.WithNewInvoiceDefaults(s.salesPersonFor(ctx), s.now()))
	}

	actor, _ := ActorFromContext(ctx)
	now := s.now().UTC()
	draft := &domain.InvoiceDraft{
		ID:        xid.New("draft"),
		Form:      form.State(),
		Catalog:   items,
		Customers: snapshot.Customers,
		CreatedBy: actor.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.draftTTL),
	}
	if err := s.drafts.Save(ctx, draft, s.draftTTL); err != nil {
		return domain.InvoiceDraft{}, err
	}

	s.metrics.RecordDraftEvent(draftEventOpen)
	return *draft, nil
}

func (s *Service) GetDraft(ctx context.Context, id string) (domain.InvoiceDraft, error) {
	draft, err := s.loadDraft(ctx, id)
	if err != nil {
		return domain.InvoiceDraft{}, err
	}
	return *draft, nil
}

// ApplyDraftEvent applies one user event to a draft and parks the updated
// state. Events for the same draft are processed one at a time.
func (s *Service) ApplyDraftEvent(ctx context.Context, id string, event domain.DraftEvent) (domain.InvoiceDraft, error) {
	id = strings.TrimSpace(id)
	event.Type = strings.TrimSpace(event.Type)
	if errs, err := s.checkStruct(event); err != nil || len(errs) > 0 {
		return domain.InvoiceDraft{}, firstError(err, errs)
	}

	unlock := s.draftLocks.Lock(id)
	defer unlock()

	draft, err := s.loadDraft(ctx, id)
	if err != nil {
		return domain.InvoiceDraft{}, err
	}
	form := invoice.Restore(invoice.Snapshot(draft.Catalog), draft.Form)
	if err := applyEvent(form, event); err != nil {
		return domain.InvoiceDraft{}, err
	}

	draft.Errors = nil
	if event.Type == domain.EventValidate {
		draft.Errors = form.Validate()
	}
	draft.Form = form.State()
	draft.ExpiresAt = s.now().UTC().Add(s.draftTTL)
	if err := s.drafts.Save(ctx, draft, s.draftTTL); err != nil {
		return domain.InvoiceDraft{}, err
	}

	s.metrics.RecordDraftEvent(event.Type)
	return *draft, nil
}

// SubmitDraft persists the draft as an invoice and discards it. On validation
// failure the draft stays open with the errors attached.
func (s *Service) SubmitDraft(ctx context.Context, id string) (domain.DraftSubmitResponse, error) {
	id = strings.TrimSpace(id)
	unlock := s.draftLocks.Lock(id)
	defer unlock()

	draft, err := s.loadDraft(ctx, id)
	if err != nil {
		return domain.DraftSubmitResponse{}, err
	}
	form := invoice.Restore(invoice.Snapshot(draft.Catalog), draft.Form)

	customerErrs, err := s.checkCustomer(ctx, nil, form.Header().CustomerID)
	if err != nil {
		return domain.DraftSubmitResponse{}, err
	}
	saved, err := s.submitForm(ctx, form, customerErrs)
	if err != nil {
		var errs invoice.ValidationErrors
		if errors.As(err, &errs) {
			draft.Errors = errs
			draft.Form = form.State()
			if saveErr := s.drafts.Save(ctx, draft, s.draftTTL); saveErr != nil {
				s.logger.Warn("failed to park draft errors", zap.String("draft_id", id), zap.Error(saveErr))
			}
		}
		return domain.DraftSubmitResponse{}, err
	}

	// A draft left behind by a failed delete must stay closed.
	draft.Errors = nil
	draft.Form = form.State()
	if err := s.drafts.Save(ctx, draft, s.draftTTL); err != nil {
		s.logger.Warn("failed to close submitted draft", zap.String("draft_id", id), zap.Error(err))
	}
	if err := s.drafts.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to discard submitted draft", zap.String("draft_id", id), zap.Error(err))
	}
	s.metrics.RecordDraftEvent(draftEventSubmit)
	return domain.DraftSubmitResponse{Invoice: saved, Created: draft.Form.InvoiceID == ""}, nil
}

// CancelDraft abandons the session without persisting anything.
func (s *Service) CancelDraft(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	unlock := s.draftLocks.Lock(id)
	defer unlock()

	draft, err := s.loadDraft(ctx, id)
	if err != nil {
		return err
	}
	form := invoice.Restore(invoice.Snapshot(draft.Catalog), draft.Form)

	var deleteErr error
	form.Cancel(func() {
		deleteErr = s.drafts.Delete(ctx, id)
	})
	if deleteErr != nil {
		return deleteErr
	}

	s.metrics.RecordDraftEvent(draftEventCancel)
	return nil
}

// loadDraft hides drafts owned by other users unless the caller is an admin.
func (s *Service) loadDraft(ctx context.Context, id string) (*domain.InvoiceDraft, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrNotFound
	}
	draft, ok, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	actor, _ := ActorFromContext(ctx)
	if actor.Role != domain.RoleAdmin && draft.CreatedBy != actor.Username {
		return nil, store.ErrNotFound
	}
	return draft, nil
}

func applyEvent(form *invoice.Form, event domain.DraftEvent) error {
	value := event.Value.String()
	lineIndex := func() (int, error) {
		if event.Index == nil || !form.ValidIndex(*event.Index) {
			return 0, invoice.ErrLineIndex
		}
		return *event.Index, nil
	}

	switch event.Type {
	case domain.EventAddLine:
		form.AddLine()
	case domain.EventRemoveLine:
		index, err := lineIndex()
		if err != nil {
			return err
		}
		form.RemoveLine(index)
	case domain.EventSelectItem:
		index, err := lineIndex()
		if err != nil {
			return err
		}
		form.SelectCatalogItem(index, value)
	case domain.EventEditField:
		index, err := lineIndex()
		if err != nil {
			return err
		}
		field := invoice.Field(strings.TrimSpace(event.Field))
		switch field {
		case invoice.FieldQuantity, invoice.FieldUnitRate, invoice.FieldTaxPercent:
		default:
			return invoice.ValidationErrors{{Field: "field", Message: "Field must be one of: quantity, unit_rate, tax_percent"}}
		}
		form.EditField(index, field, value)
	case domain.EventSetDiscount:
		form.SetDiscount(value)
	case domain.EventBlurDiscount:
		form.BlurDiscount()
	case domain.EventSetCustomer:
		form.SetCustomer(value)
	case domain.EventSetSalesPerson:
		form.SetSalesPerson(value)
	case domain.EventSetInvoiceDate:
		form.SetInvoiceDate(parseDate(value))
	case domain.EventSetDeliveryDate:
		form.SetDeliveryDate(parseDate(value))
	case domain.EventSetDescription:
		form.SetDescription(value)
	case domain.EventValidate:
	}
	return nil
}
