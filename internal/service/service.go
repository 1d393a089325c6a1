package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/report"
	"tezgah/backend/internal/storage"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// RateSource yields the current exchange rate, or nil when none is known.
type RateSource interface {
	Current(ctx context.Context) *domain.ExchangeRate
}

type Options struct {
	Rates              RateSource
	Storage            storage.ObjectStorage
	Logger             *zap.Logger
	AllowNegativeStock bool
	ReportMonths       int
	Now                func() time.Time
}

type Service struct {
	repo          store.Repository
	rates         RateSource
	storage       storage.ObjectStorage
	logger        *zap.Logger
	allowNegative bool
	reportMonths  int
	now           func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Storage == nil {
		opts.Storage = storage.NewStub()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReportMonths < 1 {
		opts.ReportMonths = report.DefaultMonths
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:          repo,
		rates:         opts.Rates,
		storage:       opts.Storage,
		logger:        opts.Logger,
		allowNegative: opts.AllowNegativeStock,
		reportMonths:  opts.ReportMonths,
		now:           opts.Now,
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		now := s.now()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidRequest)
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, actor.UserID, from, to, limit)
}

func (s *Service) currentRate(ctx context.Context) *domain.ExchangeRate {
	if s.rates == nil {
		return nil
	}
	return s.rates.Current(ctx)
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return domain.Actor{}, store.ErrUnauthenticated
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.IsAdmin() {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	return actor, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		UserID:        actor.UserID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// movementError maps stock calculation failures onto store sentinels.
func movementError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNegativeStock):
		return fmt.Errorf("%w: %v", store.ErrInsufficientStock, err)
	case errors.Is(err, domain.ErrInvalidQuantity):
		return fmt.Errorf("%w: %v", store.ErrInvalidRequest, err)
	default:
		return err
	}
}

func normalizeCurrency(c domain.Currency) (domain.Currency, error) {
	c = domain.Currency(strings.ToUpper(strings.TrimSpace(string(c))))
	if c == "" {
		return domain.CurrencyTRY, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("%w: unsupported currency %q", store.ErrInvalidRequest, c)
	}
	return c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
