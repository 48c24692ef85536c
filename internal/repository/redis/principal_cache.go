package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/repository"
)

const defaultPrincipalPrefix = "fieldops:principal"

// PrincipalCache stores resolved principal snapshots as JSON so authorization
// checks avoid re-reading user and membership rows on every request.
type PrincipalCache struct {
	client *red.Client
	prefix string
}

// NewPrincipalCache constructs a principal cache helper.
func NewPrincipalCache(client *red.Client, keyPrefix string) *PrincipalCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPrincipalPrefix
	}

	return &PrincipalCache{client: client, prefix: prefix}
}

type cachedPrincipal struct {
	UserID       string                 `json:"user_id"`
	Email        string                 `json:"email"`
	CompanyID    *string                `json:"company_id,omitempty"`
	CompanyAdmin bool                   `json:"company_admin"`
	SuperAdmin   bool                   `json:"super_admin"`
	Active       bool                   `json:"active"`
	Memberships  map[string]domain.Role `json:"memberships,omitempty"`
}

// Get fetches the cached principal, returning ErrNotFound on cache miss.
func (c *PrincipalCache) Get(ctx context.Context, userID string) (*domain.Principal, error) {
	key := c.key(userID)
	if key == "" {
		return nil, fmt.Errorf("user id is required")
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get principal: %w", err)
	}

	var cached cachedPrincipal
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("decode cached principal: %w", err)
	}

	return &domain.Principal{
		UserID:       cached.UserID,
		Email:        cached.Email,
		CompanyID:    cached.CompanyID,
		CompanyAdmin: cached.CompanyAdmin,
		SuperAdmin:   cached.SuperAdmin,
		Active:       cached.Active,
		Memberships:  cached.Memberships,
	}, nil
}

// Set stores the principal snapshot with the provided TTL.
func (c *PrincipalCache) Set(ctx context.Context, principal domain.Principal, ttl time.Duration) error {
	key := c.key(principal.UserID)
	if key == "" {
		return fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(cachedPrincipal{
		UserID:       principal.UserID,
		Email:        principal.Email,
		CompanyID:    principal.CompanyID,
		CompanyAdmin: principal.CompanyAdmin,
		SuperAdmin:   principal.SuperAdmin,
		Active:       principal.Active,
		Memberships:  principal.Memberships,
	})
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set principal: %w", err)
	}
	return nil
}

// Invalidate removes the cached snapshot, forcing the next resolution to hit
// the database. Called after any mutation that changes authorization inputs.
func (c *PrincipalCache) Invalidate(ctx context.Context, userID string) error {
	key := c.key(userID)
	if key == "" {
		return fmt.Errorf("user id is required")
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete principal: %w", err)
	}
	return nil
}

func (c *PrincipalCache) key(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}

var _ port.PrincipalCache = (*PrincipalCache)(nil)
