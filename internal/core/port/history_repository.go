package port

import (
	"context"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// HistoryRepository deals with the append-only audit ledger.
type HistoryRepository interface {
	Append(ctx context.Context, event domain.HistoryEvent) error
	// QueryByProgram returns events owned by the program, newest first.
	QueryByProgram(ctx context.Context, programID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error)
	// QueryByUser returns events where the user is the actor or the subject,
	// newest first.
	QueryByUser(ctx context.Context, userID string, filter domain.HistoryFilter) ([]domain.HistoryEvent, error)
}
