package port

import (
	"context"
	"time"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// PrincipalCache caches resolved principal snapshots so authorization data is
// loaded once per request window instead of per entity.
type PrincipalCache interface {
	Get(ctx context.Context, userID string) (*domain.Principal, error)
	Set(ctx context.Context, principal domain.Principal, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}
