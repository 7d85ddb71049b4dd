package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeliveryGuard claims short-lived keys so concurrent deliveries of the same
// notification are processed by one worker at a time. Claim returns a token
// that Release must present; a claim that expired and was taken by another
// worker is left alone.
type DeliveryGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key string, token string) error
}

type NoopDeliveryGuard struct{}

func (NoopDeliveryGuard) Claim(_ context.Context, _ string, _ time.Duration) (string, bool, error) {
	return "", true, nil
}

func (NoopDeliveryGuard) Release(_ context.Context, _ string, _ string) error {
	return nil
}

type memoryClaim struct {
	token   string
	expires time.Time
}

// MemoryDeliveryGuard is the single-process guard used when no Redis is configured.
type MemoryDeliveryGuard struct {
	mu     sync.Mutex
	claims map[string]memoryClaim
	now    func() time.Time
}

func NewMemoryDeliveryGuard() *MemoryDeliveryGuard {
	return &MemoryDeliveryGuard{
		claims: make(map[string]memoryClaim),
		now:    time.Now,
	}
}

func (g *MemoryDeliveryGuard) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if claim, ok := g.claims[key]; ok && now.Before(claim.expires) {
		return "", false, nil
	}
	token := newClaimToken()
	g.claims[key] = memoryClaim{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (g *MemoryDeliveryGuard) Release(_ context.Context, key string, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if claim, ok := g.claims[key]; ok && claim.token == token {
		delete(g.claims, key)
	}
	return nil
}

func newClaimToken() string {
	return uuid.NewString()
}
