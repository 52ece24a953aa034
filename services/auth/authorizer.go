// Package auth verifies bearer tokens and gates access on the caller's stored role.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/repositories"
	"github.com/upb/voice-agent/services"
	"go.uber.org/zap"
)

// Authorizer turns a bearer credential into an admin Caller.
// Every call performs exactly one identity-store read; nothing is cached.
type Authorizer struct {
	secret       []byte
	adminRole    models.UserRole
	identities   repositories.IdentityStore
	lookupBudget time.Duration
	parser       *jwt.Parser
	logger       *zap.Logger
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(secret string, adminRole string, identities repositories.IdentityStore, lookupBudget time.Duration, logger *zap.Logger) *Authorizer {
	if adminRole == "" {
		adminRole = string(models.RoleAdmin)
	}
	return &Authorizer{
		secret:       []byte(secret),
		adminRole:    models.UserRole(adminRole),
		identities:   identities,
		lookupBudget: lookupBudget,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}
}

// VerifyToken checks the signature and expiry and returns the subject
func (a *Authorizer) VerifyToken(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", services.ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", services.ErrTokenExpired
		}
		return "", services.NewDomainError(services.ErrorTypeUnauthenticated, services.ErrInvalidToken.Message, err)
	}

	if claims.Subject == "" {
		return "", services.NewDomainError(services.ErrorTypeUnauthenticated, services.ErrInvalidToken.Message, nil).
			WithDetail("claim", "sub")
	}
	return claims.Subject, nil
}

// Authorize verifies the credential and requires the admin role
func (a *Authorizer) Authorize(ctx context.Context, credential string) (*models.Caller, error) {
	subject, err := a.VerifyToken(credential)
	if err != nil {
		return nil, err
	}

	lookupCtx := ctx
	if a.lookupBudget > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, a.lookupBudget)
		defer cancel()
	}

	profile, err := a.identities.GetUserProfile(lookupCtx, subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			a.logger.Info("no profile for token subject", zap.String("caller_id", subject))
			return nil, services.ErrForbidden
		}
		a.logger.Error("identity lookup failed", zap.String("caller_id", subject), zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeUnauthenticated, services.ErrUnauthenticated.Message, err)
	}

	caller := &models.Caller{ID: subject, Role: profile.Role}
	if caller.Role != a.adminRole {
		a.logger.Info("non-admin caller rejected",
			zap.String("caller_id", subject),
			zap.String("role", string(caller.Role)))
		return nil, services.ErrForbidden
	}

	return caller, nil
}
