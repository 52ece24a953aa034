package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/utils"
	"go.uber.org/zap"
)

// Authorizer turns a bearer credential into an authorized caller
type Authorizer interface {
	Authorize(ctx context.Context, credential string) (*models.Caller, error)
}

// AuthMiddleware gates routes on an admin caller
type AuthMiddleware struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authorizer Authorizer, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequireAdmin rejects the request with 401 or 403 unless the bearer token
// belongs to an admin. Nothing downstream runs for a rejected request.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing bearer token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		caller, err := m.authorizer.Authorize(ctx, token)
		if err != nil {
			m.logger.Warn("authorization failed",
				zap.String("request_id", requestID),
				zap.String("error_type", string(services.GetErrorType(err))),
				zap.Error(err))
			writeAuthError(w, err)
			return
		}

		m.logger.Debug("authorization successful",
			zap.String("request_id", requestID),
			zap.String("caller_id", caller.ID))

		next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case services.IsForbiddenError(err):
		_ = utils.WriteForbidden(w, "Admin access required")
	case hasMessage(err, services.ErrTokenExpired.Message):
		_ = utils.WriteUnauthorized(w, "Token expired")
	case hasMessage(err, services.ErrInvalidToken.Message):
		_ = utils.WriteUnauthorized(w, "Invalid token")
	default:
		_ = utils.WriteUnauthorized(w, "Authentication failed")
	}
}

// hasMessage compares the outermost domain message; the sentinels share a type
func hasMessage(err error, message string) bool {
	var domainErr *services.DomainError
	return errors.As(err, &domainErr) && domainErr.Message == message
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it starts with "Bearer "
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
