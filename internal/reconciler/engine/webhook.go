package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/money"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
	"github.com/rehive/adapter-framework/internal/provider"
)

// ErrUnprocessable marks a webhook that can never succeed, however often it
// is redelivered.
var ErrUnprocessable = errors.New("unprocessable webhook")

// IngestWebhook interprets a provider notification addressed to the user
// identified by receiveID and creates or confirms the receive transaction it
// describes. A nil transaction with a nil error means there was nothing to do.
func (e *Engine) IngestWebhook(ctx context.Context, webhookType, receiveID string, payload json.RawMessage) (*transaction.Transaction, error) {
	u, err := e.users.GetByIdentifier(ctx, receiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve receiver %s: %w", receiveID, err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: unknown receiver %s", ErrUnprocessable, receiveID)
	}

	acct, err := e.accounts.Default(account.TypeReceive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}
	prov, err := e.providers.For(acct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}
	interpreter, ok := prov.(provider.WebhookInterpreter)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s does not accept webhooks", ErrUnprocessable, prov.Name())
	}

	event, err := interpreter.InterpretWebhook(ctx, acct, webhookType, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}
	if event == nil {
		e.logger.Info("Webhook needs no action", "webhook_type", webhookType, "receive_id", receiveID)
		return nil, nil
	}

	return e.CreateOrConfirmReceive(ctx, acct, u, event)
}

// CreateOrConfirmReceive records a receive event once per external id. A new
// event creates the transaction; a repeated one can only add the provider's
// confirmation. Either way the platform pipeline runs afterwards.
func (e *Engine) CreateOrConfirmReceive(ctx context.Context, acct *account.Account, u *user.User, event *provider.ReceiveEvent) (*transaction.Transaction, error) {
	if event.ExternalID == "" {
		return nil, fmt.Errorf("%w: receive event without external id", ErrUnprocessable)
	}

	tx, err := e.transactions.GetByExternalID(ctx, event.ExternalID)
	if err != nil {
		return nil, err
	}

	if tx == nil {
		tx, err = e.createReceive(ctx, acct, u, event)
		var dup transaction.ErrDuplicateExternalID
		switch {
		case errors.As(err, &dup):
			// Lost a race with a concurrent delivery of the same event.
			if tx, err = e.transactions.GetByExternalID(ctx, event.ExternalID); err != nil {
				return nil, err
			}
			if tx == nil {
				return nil, fmt.Errorf("receive %s vanished after duplicate insert", event.ExternalID)
			}
		case err != nil:
			return nil, err
		}
	}

	if event.Confirmed && !tx.ProviderConfirmed {
		if tx, err = e.confirmWithProvider(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if tx.Status.IsTerminal() {
		return tx, nil
	}
	return e.UploadToPlatform(ctx, tx.ID, 0)
}

func (e *Engine) createReceive(ctx context.Context, acct *account.Account, u *user.User, event *provider.ReceiveEvent) (*transaction.Transaction, error) {
	amount, err := money.Rescale(event.Amount, acct.ProviderDivisibility, acct.LedgerDivisibility)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}

	now := e.now()
	tx, err := transaction.New(transaction.Params{
		AccountID:     acct.ID,
		UserID:        &u.ID,
		Type:          transaction.TypeReceive,
		ExternalID:    event.ExternalID,
		ToReference:   u.Identifier,
		FromReference: event.FromReference,
		Amount:        amount,
		Currency:      event.Currency,
		Metadata:      event.Metadata,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprocessable, err)
	}

	tx.ProviderResponse = event.RawResponse
	if event.Confirmed {
		if err := tx.ConfirmWithProvider(event.RawResponse, now); err != nil {
			return nil, err
		}
	}

	if err := e.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	metrics.TransactionTransitions.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
	e.record(ctx, &audit.Event{
		TransactionID: tx.ID,
		Operation:     opReceive,
		ToStatus:      tx.Status,
		Outcome:       audit.OutcomeSucceeded,
		Response:      string(event.RawResponse),
	})
	e.logger.Info("Receive transaction created",
		"transaction_id", tx.ID.String(),
		"external_id", tx.ExternalID,
		"user", u.Identifier,
		"status", string(tx.Status),
	)
	return tx, nil
}

func (e *Engine) confirmWithProvider(ctx context.Context, stale *transaction.Transaction, event *provider.ReceiveEvent) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := e.locker.WithLock(ctx, stale.ID, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, stale.ID)
		if err != nil {
			return err
		}
		result = tx
		if tx.ProviderConfirmed || tx.Status.IsTerminal() {
			return nil
		}

		from := tx.Status
		if err := tx.ConfirmWithProvider(event.RawResponse, e.now()); err != nil {
			return err
		}
		if err := e.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("failed to store provider confirmation of %s: %w", tx.ID, err)
		}

		e.transitioned(ctx, tx, opReceive, from, 0, audit.OutcomeSucceeded, "confirmed by provider", event.RawResponse)
		e.logger.Info("Receive confirmed by provider", "transaction_id", tx.ID.String(), "status", string(tx.Status))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
