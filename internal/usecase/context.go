package usecase

import (
	"context"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

type principalKey struct{}

type requestMetaKey struct{}

// RequestMeta carries per-request transport metadata into audit writes.
type RequestMeta struct {
	RequestID *string
	IPAddress *string
	UserAgent *string
}

// WithPrincipal attaches the resolved principal to the context. Every service
// call reads the actor from here rather than from an ambient global.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal attached to the context, if any.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(domain.Principal)
	return principal, ok
}

// WithRequestMeta attaches transport metadata to the context.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the transport metadata attached to the context.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
