package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inbrentory/backend/internal/cache"
	"inbrentory/backend/internal/config"
	"inbrentory/backend/internal/domain"
	"inbrentory/backend/internal/gateway"
	"inbrentory/backend/internal/store"
	"inbrentory/backend/internal/webhook"
)

var (
	ErrTransientUpstream = errors.New("payment gateway unavailable")
	ErrPersistence       = errors.New("persistence failure")
	ErrConfiguration     = errors.New("service misconfigured")
	ErrDeliveryInFlight  = errors.New("delivery for payment already in progress")
	ErrMalformedPayload  = errors.New("malformed webhook payload")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	gateway   gateway.Client
	guard     cache.DeliveryGuard
	verifier  *webhook.Verifier
	deviceID  string
	reportLoc *time.Location
	claimTTL  time.Duration
	now       func() time.Time
}

func New(repo store.Repository, gw gateway.Client, guard cache.DeliveryGuard, cfg config.Config) (*Service, error) {
	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: report timezone %q: %v", ErrConfiguration, cfg.ReportTimezone, err)
	}
	if guard == nil {
		guard = cache.NoopDeliveryGuard{}
	}

	return &Service{
		repo:      repo,
		gateway:   gw,
		guard:     guard,
		verifier:  webhook.NewVerifier(cfg.WebhookSignatureKey, cfg.WebhookNotificationURL, cfg.AppEnv, cfg.WebhookAllowUnsigned),
		deviceID:  cfg.TerminalDeviceID,
		reportLoc: loc,
		claimTTL:  cfg.WebhookClaimTTL(),
		now:       time.Now,
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.FindSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}
