package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

// PrincipalKey is the gin context key holding the resolved principal.
const PrincipalKey = "principal"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// AuthenticateOptions configures bearer token interpretation.
type AuthenticateOptions struct {
	// SubjectClaim names the token claim carrying the user identifier.
	SubjectClaim string
}

// Authenticate extracts the caller identity from the gateway-verified bearer
// token, resolves the principal snapshot, and threads it through the request
// context. Signature verification happens at the edge; this service only
// trusts the subject claim.
func Authenticate(access *usecase.AccessService, opts AuthenticateOptions, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	subjectClaim := opts.SubjectClaim
	if subjectClaim == "" {
		subjectClaim = "sub"
	}

	parser := jwt.NewParser()

	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing or malformed authorization header"))
			return
		}

		subject, err := subjectFromToken(parser, token, subjectClaim)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid access token"))
			return
		}

		resolved, err := access.ResolvePrincipal(c.Request.Context(), subject)
		if err != nil {
			if errors.Is(err, usecase.ErrPrincipalNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "unknown principal"))
				return
			}
			log.Error("principal resolution failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authentication failed"))
			return
		}

		principal := *resolved
		ctx := usecase.WithPrincipal(c.Request.Context(), principal)

		meta := usecase.RequestMeta{}
		if requestID := requestIDFromContext(ctx); requestID != "" {
			meta.RequestID = &requestID
		}
		if ip := c.ClientIP(); ip != "" {
			meta.IPAddress = &ip
		}
		if ua := c.Request.UserAgent(); ua != "" {
			meta.UserAgent = &ua
		}
		ctx = usecase.WithRequestMeta(ctx, meta)

		c.Request = c.Request.WithContext(ctx)
		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, principal.UserID)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = principal.UserID
		}

		c.Next()
	}
}

// RequireSuperAdmin guards internal operational endpoints.
func RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if !principal.SuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// GetPrincipal retrieves the resolved principal from the gin context.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	val, exists := c.Get(PrincipalKey)
	if !exists {
		return domain.Principal{}, false
	}

	principal, ok := val.(domain.Principal)
	return principal, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

func subjectFromToken(parser *jwt.Parser, token, subjectClaim string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", err
	}

	subject, ok := claims[subjectClaim].(string)
	if !ok || strings.TrimSpace(subject) == "" {
		return "", errors.New("token missing subject claim")
	}

	return subject, nil
}
