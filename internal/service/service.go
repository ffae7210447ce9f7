package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"bizdesk/backend/internal/cache"
	"bizdesk/backend/internal/catalog"
	"bizdesk/backend/internal/domain"
	"bizdesk/backend/internal/invoice"
	"bizdesk/backend/internal/metrics"
	"bizdesk/backend/internal/store"
	"bizdesk/backend/internal/xid"
)

var ErrForbidden = errors.New("forbidden")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Catalog            *catalog.Loader
	Drafts             cache.DraftStore
	DraftTTL           time.Duration
	Metrics            *metrics.Metrics
	Logger             *zap.Logger
	DefaultSalesPerson string
}

type Service struct {
	repo               store.Repository
	catalog            *catalog.Loader
	drafts             cache.DraftStore
	draftTTL           time.Duration
	metrics            *metrics.Metrics
	logger             *zap.Logger
	validate           *validator.Validate
	defaultSalesPerson string
	draftLocks         *keyedMutex
	now                func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := opts.Catalog
	if loader == nil {
		loader = catalog.NewLoader(repo, nil, 0, logger)
	}
	drafts := opts.Drafts
	if drafts == nil {
		drafts = cache.NewMemoryDraftStore()
	}
	draftTTL := opts.DraftTTL
	if draftTTL <= 0 {
		draftTTL = 2 * time.Hour
	}

	return &Service{
		repo:               repo,
		catalog:            loader,
		drafts:             drafts,
		draftTTL:           draftTTL,
		metrics:            opts.Metrics,
		logger:             logger.Named("service"),
		validate:           newValidator(),
		defaultSalesPerson: strings.TrimSpace(opts.DefaultSalesPerson),
		draftLocks:         newKeyedMutex(),
		now:                time.Now,
	}
}

// RecordAudit writes an audit entry for actions performed outside the
// service, such as user management in the auth layer.
func (s *Service) RecordAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	s.logAudit(ctx, action, entityType, entityID, detail)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, invoice.ValidationErrors{{Field: "date", Message: "Date must be YYYY-MM-DD"}}
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func normalizeListQuery(query domain.ListQuery) domain.ListQuery {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = defaultListLimit
	}
	if query.Limit > maxListLimit {
		query.Limit = maxListLimit
	}
	query.Search = strings.TrimSpace(query.Search)
	return query
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the struct's validate tags and converts failures into the
// same field errors the invoice form reports.
func (s *Service) checkStruct(value any) (invoice.ValidationErrors, error) {
	err := s.validate.Struct(value)
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	errs := make(invoice.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, invoice.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return errs, nil
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email"
	case "numeric", "len":
		if fe.Field() == "number" {
			return "Number must be digits and exactly 10 digits"
		}
		return fmt.Sprintf("%s must be %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "alphanum":
		return label + " must contain only letters and digits"
	default:
		return label + " is invalid"
	}
}

// fieldLabel turns "brand_name" into "Brand Name".
func fieldLabel(field string) string {
	words := strings.Split(field, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Anything else, including blank
// input, yields the zero time so form validation reports the date as missing.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return invoice.StartOfDay(parsed)
	}
	return time.Time{}
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
