package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rehive/adapter-framework/internal/api_gateway/middleware"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/provider"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// respondError maps domain errors onto HTTP responses and logs anything
// the caller cannot fix.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	var requestErr *engine.RequestError
	var providerErr *provider.Error

	switch {
	case errors.As(err, &requestErr):
		RespondBadRequest(c, requestErr.Error())
	case errors.Is(err, transaction.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, &transaction.InvalidStateError{}), errors.Is(err, &transaction.AlreadyExecutedError{}):
		RespondConflict(c, err.Error())
	case errors.Is(err, account.ErrNoDefaultAccount):
		RespondNotFound(c, err.Error())
	case errors.Is(err, provider.ErrUnsupported):
		RespondBadRequest(c, err.Error())
	case errors.As(err, &providerErr):
		logger.Warn(msg, "error", err, "correlation_id", middleware.GetCorrelationID(c))
		RespondBadGateway(c, providerErr.Error())
	default:
		logger.Error(msg, "error", err, "correlation_id", middleware.GetCorrelationID(c))
		RespondInternalError(c)
	}
}
