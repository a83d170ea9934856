package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
)

// RequestError marks a create request the caller must fix: invalid fields
// or an account that cannot be resolved.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "invalid transaction request: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// CreateRequest describes a transaction to create. Amount and Fee are in
// ledger minor units. User is nil for admin initiated sends.
type CreateRequest struct {
	Type          transaction.Type
	User          *user.User
	AccountName   string
	Amount        int64
	Fee           int64
	Currency      string
	FromReference string
	ToReference   string
	ExternalID    string
	Note          string
	Metadata      map[string]any
}

// CreateTransaction resolves the account for req, by name or as the default
// of its type, and stores a Waiting transaction.
func (e *Engine) CreateTransaction(ctx context.Context, req *CreateRequest) (*transaction.Transaction, error) {
	if !req.Type.Valid() {
		return nil, &RequestError{Err: transaction.ErrInvalidType}
	}

	acct, err := e.accounts.Resolve(account.Type(req.Type), req.AccountName)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	params := transaction.Params{
		AccountID:     acct.ID,
		Type:          req.Type,
		ExternalID:    req.ExternalID,
		FromReference: req.FromReference,
		ToReference:   req.ToReference,
		Amount:        req.Amount,
		Fee:           req.Fee,
		Currency:      req.Currency,
		Note:          req.Note,
		Metadata:      req.Metadata,
	}
	if req.User != nil {
		params.UserID = &req.User.ID
		switch req.Type {
		case transaction.TypeDeposit, transaction.TypeReceive:
			params.ToReference = req.User.Identifier
		case transaction.TypeWithdraw:
			params.FromReference = req.User.Identifier
		}
	}

	tx, err := transaction.New(params, e.now())
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	if err := e.transactions.Create(ctx, tx); err != nil {
		var dup transaction.ErrDuplicateExternalID
		if errors.As(err, &dup) {
			return nil, &RequestError{Err: err}
		}
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	metrics.TransactionTransitions.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
	e.record(ctx, &audit.Event{
		TransactionID: tx.ID,
		Operation:     "create",
		ToStatus:      tx.Status,
		Outcome:       audit.OutcomeSucceeded,
		Detail:        "account " + acct.Name,
	})
	e.logger.Info("Transaction created",
		"transaction_id", tx.ID.String(),
		"type", string(tx.Type),
		"account", acct.Name,
		"amount", tx.Amount,
		"currency", tx.Currency,
	)
	return tx, nil
}
