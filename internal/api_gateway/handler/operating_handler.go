package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rehive/adapter-framework/internal/api_gateway/middleware"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
	"github.com/rehive/adapter-framework/internal/domain/account"
)

// OperatingHandler exposes the adapter's own accounts
type OperatingHandler struct {
	operatingService service.OperatingService
	logger           *slog.Logger
}

// NewOperatingHandler creates a new operating handler
func NewOperatingHandler(logger *slog.Logger, operatingService service.OperatingService) *OperatingHandler {
	return &OperatingHandler{
		operatingService: operatingService,
		logger:           logger,
	}
}

// AccountReference returns the provider reference of the default account of ?type=
func (h *OperatingHandler) AccountReference(c *gin.Context) {
	var params AccountTypeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid account type")
		return
	}

	ref, err := h.operatingService.AccountReference(c.Request.Context(), account.Type(params.Type))
	if err != nil {
		respondError(c, h.logger, "Failed to get account reference", err)
		return
	}

	RespondOK(c, ReferenceResponse{Type: params.Type, Reference: ref})
}

// Balance returns the default account's balance in ledger minor units
func (h *OperatingHandler) Balance(c *gin.Context) {
	var params AccountTypeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid account type")
		return
	}

	bal, err := h.operatingService.AccountBalance(c.Request.Context(), account.Type(params.Type))
	if err != nil {
		respondError(c, h.logger, "Failed to get account balance", err)
		return
	}

	RespondOK(c, bal)
}

// UserAccount returns the reference the authenticated user receives funds on
func (h *OperatingHandler) UserAccount(c *gin.Context) {
	u := middleware.CurrentUser(c)

	ref, err := h.operatingService.UserReference(c.Request.Context(), u)
	if err != nil {
		respondError(c, h.logger, "Failed to get user reference", err)
		return
	}

	RespondOK(c, ReferenceResponse{Type: string(account.TypeReceive), Reference: ref})
}
