package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/api_gateway/middleware"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// TransactionHandler handles HTTP requests for transaction operations
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Deposit credits the authenticated user. The transaction runs through the
// provider and the platform before the response is written.
func (h *TransactionHandler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	h.create(c, &engine.CreateRequest{
		Type:          transaction.TypeDeposit,
		User:          middleware.CurrentUser(c),
		AccountName:   req.Account,
		Amount:        req.Amount,
		Fee:           req.Fee,
		Currency:      req.Currency,
		FromReference: req.FromReference,
		Note:          req.Note,
		Metadata:      req.Metadata,
	})
}

// Withdraw debits the authenticated user and pays out to the given reference
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	h.create(c, &engine.CreateRequest{
		Type:        transaction.TypeWithdraw,
		User:        middleware.CurrentUser(c),
		AccountName: req.Account,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Currency:    req.Currency,
		ToReference: req.ToReference,
		Note:        req.Note,
		Metadata:    req.Metadata,
	})
}

// Send moves funds between two references for an administrator
func (h *TransactionHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	h.create(c, &engine.CreateRequest{
		Type:          transaction.TypeSend,
		AccountName:   req.Account,
		Amount:        req.Amount,
		Fee:           req.Fee,
		Currency:      req.Currency,
		FromReference: req.FromReference,
		ToReference:   req.ToReference,
		Note:          req.Note,
		Metadata:      req.Metadata,
	})
}

// create answers 201 with whatever status processing reached; only a request
// the engine refuses to store is an error for the caller.
func (h *TransactionHandler) create(c *gin.Context, req *engine.CreateRequest) {
	tx, err := h.transactionService.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "Failed to create transaction", err)
		return
	}

	RespondCreated(c, mapTransactionToResponse(tx))
}

// GetByID retrieves transaction details by its ID, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := parseTransactionID(c)
	if !ok {
		return
	}

	tx, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get transaction", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

// GetEvents returns one page of the transaction's audit trail
func (h *TransactionHandler) GetEvents(c *gin.Context) {
	id, ok := parseTransactionID(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	events, err := h.transactionService.GetTransactionEvents(c.Request.Context(), id, pagination.Page, pagination.PerPage)
	if err != nil {
		respondError(c, h.logger, "Failed to get transaction events", err)
		return
	}

	response := make([]EventResponse, 0, len(events))
	for _, e := range events {
		response = append(response, mapEventToResponse(e))
	}

	RespondWithPage(c, http.StatusOK, response, pagination.Page, pagination.PerPage)
}

// Cancel moves a non-terminal transaction to Cancelled
func (h *TransactionHandler) Cancel(c *gin.Context) {
	id, ok := parseTransactionID(c)
	if !ok {
		return
	}

	tx, err := h.transactionService.CancelTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to cancel transaction", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

func parseTransactionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return uuid.Nil, false
	}
	return id, true
}
