// Package ledgerapi is a client for the platform ledger's admin API. Network
// failures and unparsable responses are reported as shared.TransportError;
// non-2xx responses carrying a body as shared.RejectionError.
package ledgerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/domain/shared"
	"github.com/rehive/adapter-framework/internal/domain/user"
)

const maxBodyBytes = 1 << 20

var ErrMissingTxCode = errors.New("response carries no tx_code")

// Client talks to the platform admin API.
type Client struct {
	baseURL    string
	token      string
	scheme     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a platform API client from config.
func NewClient(cfg config.PlatformConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		scheme:  cfg.AuthScheme,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "ledgerapi"),
	}
}

// CreateTransactionRequest is the body of a platform transaction creation.
type CreateTransactionRequest struct {
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Metadata      map[string]any `json:"metadata"`
	FromReference string         `json:"from_reference,omitempty"`
	ToReference   string         `json:"to_reference,omitempty"`
	Sender        string         `json:"sender,omitempty"`
}

type confirmRequest struct {
	TxCode string `json:"tx_code"`
	Status string `json:"status"`
}

type txCodeEnvelope struct {
	Data struct {
		TxCode string `json:"tx_code"`
	} `json:"data"`
}

// Result is a successful platform response.
type Result struct {
	TxCode string
	Raw    json.RawMessage
}

// CreateTransaction posts a new transaction of txType and returns the
// platform's tx_code.
func (c *Client) CreateTransaction(ctx context.Context, txType string, req *CreateTransactionRequest) (*Result, error) {
	op := "create " + txType + " transaction"
	raw, err := c.post(ctx, op, "/admins/transactions/"+txType+"/", req)
	if err != nil {
		return nil, err
	}

	var env txCodeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &shared.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if env.Data.TxCode == "" {
		return nil, &shared.TransportError{Op: op, Err: ErrMissingTxCode}
	}

	return &Result{TxCode: env.Data.TxCode, Raw: raw}, nil
}

// ConfirmTransaction marks the platform transaction txCode as Confirmed.
func (c *Client) ConfirmTransaction(ctx context.Context, txCode string) (*Result, error) {
	raw, err := c.post(ctx, "confirm transaction", "/admins/transactions/update/", &confirmRequest{TxCode: txCode, Status: "Confirmed"})
	if err != nil {
		return nil, err
	}
	return &Result{TxCode: txCode, Raw: raw}, nil
}

type profileEnvelope struct {
	Data struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Mobile    string `json:"mobile"`
		Company   string `json:"company"`
	} `json:"data"`
}

// VerifyToken asks the platform to validate a user JWT and returns the
// user's profile.
func (c *Client) VerifyToken(ctx context.Context, token string) (*user.Profile, error) {
	raw, err := c.post(ctx, "verify token", "/auth/jwt/verify/", map[string]string{"token": token})
	if err != nil {
		return nil, err
	}

	var env profileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &shared.TransportError{Op: "verify token", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &user.Profile{
		Identifier:   env.Data.ID,
		FirstName:    env.Data.FirstName,
		LastName:     env.Data.LastName,
		Email:        env.Data.Email,
		MobileNumber: env.Data.Mobile,
		Company:      env.Data.Company,
	}, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.scheme+" "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Platform request failed", "op", op, "error", err)
		return nil, &shared.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &shared.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("Platform request completed", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(bytes.TrimSpace(respBody)) == 0 {
			return nil, &shared.TransportError{Op: op, Err: fmt.Errorf("empty response with status %d", resp.StatusCode)}
		}
		c.logger.Warn("Platform rejected request", "op", op, "status", resp.StatusCode)
		return nil, &shared.RejectionError{Op: op, StatusCode: resp.StatusCode, Body: respBody}
	}

	if !json.Valid(respBody) {
		return nil, &shared.TransportError{Op: op, Err: errors.New("malformed JSON response")}
	}
	return respBody, nil
}
