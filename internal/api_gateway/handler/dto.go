package handler

import (
	"encoding/json"
	"time"

	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
)

// DepositRequest credits the authenticated user with funds arriving from FromReference
type DepositRequest struct {
	Amount        int64          `json:"amount" binding:"gt=0"`
	Fee           int64          `json:"fee" binding:"min=0"`
	Currency      string         `json:"currency" binding:"required"`
	FromReference string         `json:"from_reference"`
	Note          string         `json:"note"`
	Metadata      map[string]any `json:"metadata"`
	Account       string         `json:"account"`
}

// WithdrawRequest debits the authenticated user and pays out to ToReference
type WithdrawRequest struct {
	Amount      int64          `json:"amount" binding:"gt=0"`
	Fee         int64          `json:"fee" binding:"min=0"`
	Currency    string         `json:"currency" binding:"required"`
	ToReference string         `json:"to_reference" binding:"required"`
	Note        string         `json:"note"`
	Metadata    map[string]any `json:"metadata"`
	Account     string         `json:"account"`
}

// SendRequest moves funds between two references on behalf of an administrator
type SendRequest struct {
	Amount        int64          `json:"amount" binding:"gt=0"`
	Fee           int64          `json:"fee" binding:"min=0"`
	Currency      string         `json:"currency" binding:"required"`
	FromReference string         `json:"from_reference" binding:"required"`
	ToReference   string         `json:"to_reference" binding:"required"`
	Note          string         `json:"note"`
	Metadata      map[string]any `json:"metadata"`
	Account       string         `json:"account"`
}

// WebhookRequest is the envelope providers post notifications in
type WebhookRequest struct {
	ReceiveID string          `json:"receive_id"`
	Data      json.RawMessage `json:"data"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                string          `json:"id"`
	AccountID         string          `json:"account_id"`
	UserID            string          `json:"user_id,omitempty"`
	Type              string          `json:"tx_type"`
	Status            string          `json:"status"`
	ExternalID        string          `json:"external_id,omitempty"`
	PlatformCode      string          `json:"tx_code,omitempty"`
	ToReference       string          `json:"to_reference,omitempty"`
	FromReference     string          `json:"from_reference,omitempty"`
	Amount            int64           `json:"amount"`
	Fee               int64           `json:"fee"`
	Currency          string          `json:"currency"`
	Note              string          `json:"note,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	ProviderConfirmed bool            `json:"provider_confirmed"`
	ProviderResponse  json.RawMessage `json:"provider_response,omitempty"`
	PlatformResponse  json.RawMessage `json:"platform_response,omitempty"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
	CompletedAt       string          `json:"completed_at,omitempty"`
}

// EventResponse represents one audit trail entry
type EventResponse struct {
	Operation     string `json:"operation"`
	FromStatus    string `json:"from_status,omitempty"`
	ToStatus      string `json:"to_status,omitempty"`
	Attempt       int    `json:"attempt"`
	Outcome       string `json:"outcome"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	RecordedAt    string `json:"recorded_at"`
}

// ReferenceResponse carries a provider reference funds can be sent to
type ReferenceResponse struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// AccountTypeParams selects an operating account by type
type AccountTypeParams struct {
	Type string `form:"type" binding:"required,oneof=deposit withdraw send receive"`
}

func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:                tx.ID.String(),
		AccountID:         tx.AccountID.String(),
		Type:              string(tx.Type),
		Status:            string(tx.Status),
		ExternalID:        tx.ExternalID,
		PlatformCode:      tx.PlatformCode,
		ToReference:       tx.ToReference,
		FromReference:     tx.FromReference,
		Amount:            tx.Amount,
		Fee:               tx.Fee,
		Currency:          tx.Currency,
		Note:              tx.Note,
		Metadata:          tx.Metadata,
		ProviderConfirmed: tx.ProviderConfirmed,
		ProviderResponse:  tx.ProviderResponse,
		PlatformResponse:  tx.PlatformResponse,
		CreatedAt:         tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         tx.UpdatedAt.Format(time.RFC3339),
	}

	if tx.UserID != nil {
		response.UserID = tx.UserID.String()
	}
	if tx.CompletedAt != nil {
		response.CompletedAt = tx.CompletedAt.Format(time.RFC3339)
	}

	return response
}

func mapEventToResponse(e *audit.Event) EventResponse {
	return EventResponse{
		Operation:     e.Operation,
		FromStatus:    string(e.FromStatus),
		ToStatus:      string(e.ToStatus),
		Attempt:       e.Attempt,
		Outcome:       e.Outcome,
		Detail:        e.Detail,
		CorrelationID: e.CorrelationID,
		RecordedAt:    e.RecordedAt.Format(time.RFC3339),
	}
}
