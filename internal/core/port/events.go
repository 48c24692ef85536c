package port

import (
	"context"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// EventPublisher emits platform events for downstream consumers.
type EventPublisher interface {
	PublishSessionStateChanged(ctx context.Context, event domain.SessionStateChangedEvent) error
	PublishHistoryAppended(ctx context.Context, event domain.HistoryAppendedEvent) error
}
