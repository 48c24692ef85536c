package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

// UserRepository implements port.UserRepository for PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var userColumns = []string{
	"id",
	"email",
	"full_name",
	"company_id",
	"company_admin",
	"super_admin",
	"active",
	"created_at",
	"updated_at",
}

// GetByID returns a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	sql, args, err := r.builder.
		Select(userColumns...).
		From("fieldops.users").
		Where(squirrel.Eq{"id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := executor(ctx, r.exec).QueryRow(ctx, sql, args...)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.CompanyID,
		&user.CompanyAdmin,
		&user.SuperAdmin,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if translated := translateError(err); translated == repository.ErrNotFound {
			return nil, translated
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

// SetActive flips the user's active flag.
func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	sql, args, err := r.builder.
		Update("fieldops.users").
		Set("active", active).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
