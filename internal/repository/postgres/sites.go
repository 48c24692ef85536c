package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// SiteRepository implements port.SiteRepository for PostgreSQL.
type SiteRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSiteRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewSiteRepository(exec pgExecutor) *SiteRepository {
	return &SiteRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns a site by identifier.
func (r *SiteRepository) GetByID(ctx context.Context, siteID string) (*domain.Site, error) {
	sql, args, err := r.builder.
		Select("id", "program_id", "name", "created_at").
		From("fieldops.sites").
		Where(squirrel.Eq{"id": siteID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select site sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)

	var site domain.Site
	if err := row.Scan(&site.ID, &site.ProgramID, &site.Name, &site.CreatedAt); err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan site: %w", err)
	}

	return &site, nil
}

var _ port.SiteRepository = (*SiteRepository)(nil)
