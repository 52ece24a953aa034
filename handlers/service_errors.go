package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var domainErr *services.DomainError
	errors.As(err, &domainErr)

	switch {
	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, publicMessage(domainErr), services.GetErrorDetails(err)); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsUnauthenticatedError(err):
		if err := utils.WriteUnauthorized(w, publicMessage(domainErr)); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}

	case services.IsForbiddenError(err):
		if err := utils.WriteForbidden(w, "Admin access required"); err != nil {
			logger.Error("failed to write forbidden response", zap.Error(err))
		}

	default:
		// Stage failures and anything unexpected share one generic message
		logger.Error("request failed",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "Internal server error"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}

	if domainErr != nil {
		logger.Debug("handled service error",
			zap.String("type", string(domainErr.Type)),
			zap.String("message", domainErr.Message),
			zap.Any("details", domainErr.Details))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// publicMessage capitalizes the domain message for clients
func publicMessage(domainErr *services.DomainError) string {
	if domainErr == nil || domainErr.Message == "" {
		return ""
	}
	msg := []byte(domainErr.Message)
	if msg[0] >= 'a' && msg[0] <= 'z' {
		msg[0] -= 'a' - 'A'
	}
	return string(msg)
}
