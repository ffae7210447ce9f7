package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bizdesk/backend/internal/cache"
	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/invoice"
	"bizdesk/backend/internal/metrics"
	"bizdesk/backend/internal/store"
	"bizdesk/backend/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo := memory.NewSeeded(zap.NewNop())
	svc := New(repo, Options{Metrics: metrics.New(), Logger: zap.NewNop()})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func num(v string) *domain.NumberText {
	n := domain.NumberText(v)
	return &n
}

func idx(i int) *int {
	return &i
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}

func validationErrors(t *testing.T, err error) invoice.ValidationErrors {
	t.Helper()
	require.ErrorIs(t, err, invoice.ErrValidation)
	var errs invoice.ValidationErrors
	require.True(t, errors.As(err, &errs))
	return errs
}

func widgetOrder() domain.InvoiceRequest {
	return domain.InvoiceRequest{
		CustomerID: "cust-acme",
		Items: []domain.InvoiceItemRequest{
			{CatalogItemID: "item-widget", Quantity: num("2")},
			{CatalogItemID: "item-bracket"},
		},
		Discount: "50",
	}
}

func TestCreateInvoiceComputesTotalsFromCatalog(t *testing.T) {
	svc := newTestService(t)

	inv, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", inv.Number)
	assert.Equal(t, "staff", inv.CreatedBy)
	assert.Equal(t, "staff", inv.SalesPerson)
	assert.Equal(t, "Acme Traders", inv.CustomerName)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), inv.InvoiceDate)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), inv.DeliveryDate)
	require.Len(t, inv.Items, 2)
	assertDecimal(t, "236", inv.Items[0].LineTotal)
	assertDecimal(t, "262.5", inv.Items[1].LineTotal)
	assertDecimal(t, "498.5", inv.Subtotal)
	assertDecimal(t, "448.5", inv.FinalAmount)
}

func TestCreateInvoiceUsesConfiguredSalesPerson(t *testing.T) {
	repo := memory.NewSeeded(zap.NewNop())
	svc := New(repo, Options{DefaultSalesPerson: "Front Desk"})

	inv, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)
	assert.Equal(t, "Front Desk", inv.SalesPerson)

	req := widgetOrder()
	req.SalesPerson = "Dana"
	inv, err = svc.CreateInvoice(staffCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, "Dana", inv.SalesPerson)
}

func TestCreateInvoiceReportsEveryFieldError(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateInvoice(staffCtx(), domain.InvoiceRequest{
		InvoiceDate: "10/03/2026",
		Items: []domain.InvoiceItemRequest{
			{CatalogItemID: "item-missing"},
			{CatalogItemID: "item-widget", Quantity: num("abc")},
		},
		Discount: "-5",
	})
	errs := validationErrors(t, err)

	assert.True(t, errs.Has("customer_id"))
	assert.True(t, errs.Has("invoice_date"))
	assert.True(t, errs.Has("items[0].catalog_item_id"))
	assert.True(t, errs.Has("items[1].quantity"))
	assert.True(t, errs.Has("discount"))
	assert.False(t, errs.Has("delivery_date"))

	page, err := svc.ListInvoices(staffCtx(), domain.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestCreateInvoiceRequiresItems(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateInvoice(staffCtx(), domain.InvoiceRequest{CustomerID: "cust-acme"})
	errs := validationErrors(t, err)
	assert.True(t, errs.Has("items"))
}

func TestCreateInvoiceRejectsUnknownCustomer(t *testing.T) {
	svc := newTestService(t)

	req := widgetOrder()
	req.CustomerID = "cust-nope"
	_, err := svc.CreateInvoice(staffCtx(), req)
	errs := validationErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, invoice.FieldError{Field: "customer_id", Message: "Customer not found"}, errs[0])
}

func TestUpdateInvoiceReplacesLinesAndKeepsHeader(t *testing.T) {
	svc := newTestService(t)
	created, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)

	updated, err := svc.UpdateInvoice(staffCtx(), created.ID, domain.InvoiceRequest{
		Items: []domain.InvoiceItemRequest{
			{CatalogItemID: "item-install", Quantity: num("2")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Number, updated.Number)
	assert.Equal(t, "cust-acme", updated.CustomerID)
	assert.Equal(t, created.InvoiceDate, updated.InvoiceDate)
	require.Len(t, updated.Items, 1)
	assertDecimal(t, "107.38", updated.Subtotal)
	assertDecimal(t, "50", updated.Discount)
	assertDecimal(t, "57.38", updated.FinalAmount)
}

func TestUpdateInvoiceAllowsInactiveItemAlreadyOnInvoice(t *testing.T) {
	svc := newTestService(t)
	created, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)

	inactive := false
	req := widgetItemRequest()
	req.Status = &inactive
	_, err = svc.UpdateCatalogItem(adminCtx(), "item-widget", req)
	require.NoError(t, err)

	_, err = svc.UpdateInvoice(staffCtx(), created.ID, widgetOrder())
	require.NoError(t, err)

	_, err = svc.CreateInvoice(staffCtx(), widgetOrder())
	errs := validationErrors(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "items[0].catalog_item_id", errs[0].Field)
	assert.Equal(t, "Item is inactive", errs[0].Message)
}

func TestPreviewInvoiceDoesNotPersist(t *testing.T) {
	svc := newTestService(t)

	preview, err := svc.PreviewInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)
	assert.True(t, preview.Valid)
	assert.Empty(t, preview.Errors)
	assertDecimal(t, "448.5", preview.FinalAmount)

	preview, err = svc.PreviewInvoice(staffCtx(), domain.InvoiceRequest{})
	require.NoError(t, err)
	assert.False(t, preview.Valid)
	assert.True(t, preview.Errors.Has("customer_id"))

	page, err := svc.ListInvoices(staffCtx(), domain.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestDeleteInvoiceRequiresAdmin(t *testing.T) {
	svc := newTestService(t)
	created, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteInvoice(staffCtx(), created.ID), ErrForbidden)
	require.NoError(t, svc.DeleteInvoice(adminCtx(), created.ID))

	_, err = svc.GetInvoice(staffCtx(), created.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMasterDataMutationsRequireAdmin(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateCustomer(staffCtx(), domain.CustomerRequest{Name: "Hooli", Number: "9000000001"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateCatalogItem(staffCtx(), widgetItemRequest())
	require.ErrorIs(t, err, ErrForbidden)

	require.ErrorIs(t, svc.DeleteCustomer(context.Background(), "cust-acme"), ErrForbidden)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateCustomer(adminCtx(), domain.CustomerRequest{
		Name:   "  ",
		Number: "12345",
		Email:  "not-an-email",
	})
	errs := validationErrors(t, err)

	byField := map[string]string{}
	for _, fe := range errs {
		byField[fe.Field] = fe.Message
	}
	assert.Equal(t, "Name is required", byField["name"])
	assert.Equal(t, "Number must be digits and exactly 10 digits", byField["number"])
	assert.Equal(t, "Invalid email", byField["email"])

	created, err := svc.CreateCustomer(adminCtx(), domain.CustomerRequest{
		Name:   " Hooli ",
		Number: "9000000001",
		Email:  "Billing@Hooli.Example",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hooli", created.Name)
	assert.Equal(t, "billing@hooli.example", created.Email)

	snapshot, err := svc.CatalogSnapshot(staffCtx())
	require.NoError(t, err)
	assert.Contains(t, snapshot.Customers, domain.CustomerOption{ID: created.ID, Name: "Hooli"})
}

func TestDeleteCustomerReferencedByInvoiceConflicts(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteCustomer(adminCtx(), "cust-acme"), store.ErrConflict)
	require.NoError(t, svc.DeleteCustomer(adminCtx(), "cust-initech"))
}

func widgetItemRequest() domain.CatalogItemRequest {
	return domain.CatalogItemRequest{
		ItemName:     "Steel Widget",
		SKU:          "wid-001",
		PartNumber:   "PN-1001",
		Description:  "Galvanised steel widget",
		Category:     "hardware",
		BrandName:    "Forge",
		Tax:          "18",
		CostPrice:    "70",
		SellingPrice: "100",
	}
}

func TestCatalogItemAmountsAreValidated(t *testing.T) {
	svc := newTestService(t)

	req := widgetItemRequest()
	req.SKU = "WID-009"
	req.Tax = "abc"
	req.CostPrice = "-1"
	req.SellingPrice = ""
	_, err := svc.CreateCatalogItem(adminCtx(), req)
	errs := validationErrors(t, err)
	assert.ElementsMatch(t, invoice.ValidationErrors{
		{Field: "tax", Message: "Tax must be a number"},
		{Field: "cost_price", Message: "Cost Price cannot be negative"},
		{Field: "selling_price", Message: "Selling Price is required"},
	}, errs)

	req = widgetItemRequest()
	req.SKU = "wid-009"
	req.SellingPrice = "120.75"
	created, err := svc.CreateCatalogItem(adminCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, "WID-009", created.SKU)
	assert.Equal(t, domain.DefaultItemType, created.ItemType)
	assert.True(t, created.Active)
	assertDecimal(t, "120.75", created.SellingPrice)

	_, err = svc.CreateCatalogItem(adminCtx(), req)
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestDraftSessionSubmitsInvoice(t *testing.T) {
	svc := newTestService(t)
	ctx := staffCtx()

	draft, err := svc.OpenDraft(ctx, domain.DraftCreateRequest{})
	require.NoError(t, err)
	require.Len(t, draft.Form.Lines, 1)
	assert.Equal(t, "staff", draft.Form.Header.SalesPerson)

	events := []domain.DraftEvent{
		{Type: domain.EventSetCustomer, Value: "cust-acme"},
		{Type: domain.EventSelectItem, Index: idx(0), Value: "item-widget"},
		{Type: domain.EventEditField, Index: idx(0), Field: "quantity", Value: "3"},
		{Type: domain.EventAddLine},
		{Type: domain.EventSelectItem, Index: idx(1), Value: "item-bracket"},
		{Type: domain.EventSetDiscount, Value: "10"},
		{Type: domain.EventBlurDiscount},
	}
	for _, event := range events {
		draft, err = svc.ApplyDraftEvent(ctx, draft.ID, event)
		require.NoError(t, err, event.Type)
	}
	assertDecimal(t, "616.5", draft.Form.Totals.Subtotal)
	assertDecimal(t, "606.5", draft.Form.Totals.FinalAmount)

	resp, err := svc.SubmitDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assertDecimal(t, "606.5", resp.Invoice.FinalAmount)

	_, err = svc.GetDraft(ctx, draft.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

type stickyDraftStore struct {
	*cache.MemoryDraftStore
}

func (stickyDraftStore) Delete(context.Context, string) error {
	return errors.New("delete unavailable")
}

func TestSubmittedDraftCannotBeSubmittedTwice(t *testing.T) {
	repo := memory.NewSeeded(zap.NewNop())
	svc := New(repo, Options{Drafts: stickyDraftStore{cache.NewMemoryDraftStore()}, Logger: zap.NewNop()})
	svc.now = func() time.Time { return fixedNow }
	ctx := staffCtx()

	draft, err := svc.OpenDraft(ctx, domain.DraftCreateRequest{})
	require.NoError(t, err)
	for _, event := range []domain.DraftEvent{
		{Type: domain.EventSetCustomer, Value: "cust-acme"},
		{Type: domain.EventSelectItem, Index: idx(0), Value: "item-widget"},
	} {
		_, err = svc.ApplyDraftEvent(ctx, draft.ID, event)
		require.NoError(t, err)
	}

	_, err = svc.SubmitDraft(ctx, draft.ID)
	require.NoError(t, err)

	leftover, err := svc.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, leftover.Form.Closed)

	_, err = svc.SubmitDraft(ctx, draft.ID)
	require.ErrorIs(t, err, invoice.ErrFormClosed)

	page, err := svc.ListInvoices(ctx, domain.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestDraftEventsSerialiseOnTrimmedID(t *testing.T) {
	svc := newTestService(t)
	ctx := staffCtx()
	draft, err := svc.OpenDraft(ctx, domain.DraftCreateRequest{})
	require.NoError(t, err)

	unlock := svc.draftLocks.Lock(draft.ID)
	done := make(chan error, 1)
	go func() {
		_, err := svc.ApplyDraftEvent(ctx, " "+draft.ID+" ", domain.DraftEvent{Type: domain.EventAddLine})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("event applied while the draft was locked")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	require.NoError(t, <-done)

	got, err := svc.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Len(t, got.Form.Lines, 2)
}

func TestDraftEventRejectsBadLineIndex(t *testing.T) {
	svc := newTestService(t)
	draft, err := svc.OpenDraft(staffCtx(), domain.DraftCreateRequest{})
	require.NoError(t, err)

	_, err = svc.ApplyDraftEvent(staffCtx(), draft.ID, domain.DraftEvent{Type: domain.EventRemoveLine, Index: idx(4)})
	require.ErrorIs(t, err, invoice.ErrLineIndex)

	_, err = svc.ApplyDraftEvent(staffCtx(), draft.ID, domain.DraftEvent{Type: domain.EventEditField, Index: idx(0), Field: "colour", Value: "red"})
	errs := validationErrors(t, err)
	assert.True(t, errs.Has("field"))

	_, err = svc.ApplyDraftEvent(staffCtx(), draft.ID, domain.DraftEvent{Type: "explode"})
	errs = validationErrors(t, err)
	assert.True(t, errs.Has("type"))
}

func TestDraftValidateAndFailedSubmitKeepErrors(t *testing.T) {
	svc := newTestService(t)
	draft, err := svc.OpenDraft(staffCtx(), domain.DraftCreateRequest{})
	require.NoError(t, err)

	draft, err = svc.ApplyDraftEvent(staffCtx(), draft.ID, domain.DraftEvent{Type: domain.EventValidate})
	require.NoError(t, err)
	assert.True(t, draft.Errors.Has("customer_id"))
	assert.True(t, draft.Errors.Has("items[0].catalog_item_id"))

	_, err = svc.SubmitDraft(staffCtx(), draft.ID)
	validationErrors(t, err)

	parked, err := svc.GetDraft(staffCtx(), draft.ID)
	require.NoError(t, err)
	assert.True(t, parked.Errors.Has("customer_id"))
	assert.False(t, parked.Form.Closed)
}

func TestDraftsAreScopedToTheirOwner(t *testing.T) {
	svc := newTestService(t)
	draft, err := svc.OpenDraft(staffCtx(), domain.DraftCreateRequest{})
	require.NoError(t, err)

	other := WithActor(context.Background(), domain.Actor{Username: "staff2", Role: domain.RoleStaff})
	_, err = svc.GetDraft(other, draft.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.GetDraft(adminCtx(), draft.ID)
	require.NoError(t, err)
}

func TestCancelDraftDiscardsSession(t *testing.T) {
	svc := newTestService(t)
	draft, err := svc.OpenDraft(staffCtx(), domain.DraftCreateRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.CancelDraft(staffCtx(), draft.ID))
	require.ErrorIs(t, svc.CancelDraft(staffCtx(), draft.ID), store.ErrNotFound)

	page, err := svc.ListInvoices(staffCtx(), domain.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestDraftHydratedFromInvoiceUpdatesIt(t *testing.T) {
	svc := newTestService(t)
	created, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)

	draft, err := svc.OpenDraft(staffCtx(), domain.DraftCreateRequest{InvoiceID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, created.ID, draft.Form.InvoiceID)
	require.Len(t, draft.Form.Lines, 2)
	assertDecimal(t, "448.5", draft.Form.Totals.FinalAmount)

	draft, err = svc.ApplyDraftEvent(staffCtx(), draft.ID, domain.DraftEvent{Type: domain.EventRemoveLine, Index: idx(1)})
	require.NoError(t, err)

	resp, err := svc.SubmitDraft(staffCtx(), draft.ID)
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Equal(t, created.Number, resp.Invoice.Number)
	assertDecimal(t, "186", resp.Invoice.FinalAmount)

	_, err = svc.OpenDraft(staffCtx(), domain.DraftCreateRequest{InvoiceID: "inv-missing"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMutationsAreAudited(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateInvoice(staffCtx(), widgetOrder())
	require.NoError(t, err)
	_, err = svc.CreateCustomer(adminCtx(), domain.CustomerRequest{Name: "Hooli", Number: "9000000001"})
	require.NoError(t, err)

	_, err = svc.ListAuditLogs(staffCtx(), "2026-03-10", 10)
	require.ErrorIs(t, err, ErrForbidden)

	logs, err := svc.ListAuditLogs(adminCtx(), "2026-03-10", 10)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, entry := range logs {
		actions = append(actions, entry.Action)
	}
	assert.ElementsMatch(t, []string{"invoice_create", "customer_create"}, actions)

	_, err = svc.ListAuditLogs(adminCtx(), "10-03-2026", 10)
	validationErrors(t, err)
}

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	locks := newKeyedMutex()
	unlock := locks.Lock("a")

	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("a")
		close(acquired)
		release()
	}()

	otherUnlock := locks.Lock("b")
	otherUnlock()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
