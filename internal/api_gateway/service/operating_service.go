package service

import (
	"context"
	"fmt"

	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/money"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// Balance is an operating account balance in ledger minor units.
type Balance struct {
	Account  string `json:"account"`
	Amount   int64  `json:"balance"`
	Currency string `json:"currency"`
}

// OperatingServiceImpl implements the OperatingService interface
type OperatingServiceImpl struct {
	accounts  *account.Directory
	providers engine.ProviderResolver
}

// NewOperatingService creates a new operating service
func NewOperatingService(accounts *account.Directory, providers engine.ProviderResolver) OperatingService {
	return &OperatingServiceImpl{
		accounts:  accounts,
		providers: providers,
	}
}

// AccountReference returns the provider reference of the default account for t
func (s *OperatingServiceImpl) AccountReference(ctx context.Context, t account.Type) (string, error) {
	acct, err := s.accounts.Default(t)
	if err != nil {
		return "", err
	}
	prov, err := s.providers.For(acct)
	if err != nil {
		return "", err
	}
	return prov.AccountReference(ctx, acct)
}

// AccountBalance asks the provider for the default account's balance and
// rescales it from provider to ledger divisibility
func (s *OperatingServiceImpl) AccountBalance(ctx context.Context, t account.Type) (*Balance, error) {
	acct, err := s.accounts.Default(t)
	if err != nil {
		return nil, err
	}
	prov, err := s.providers.For(acct)
	if err != nil {
		return nil, err
	}

	bal, err := prov.AccountBalance(ctx, acct)
	if err != nil {
		return nil, err
	}
	amount, err := money.Rescale(bal.Amount, acct.ProviderDivisibility, acct.LedgerDivisibility)
	if err != nil {
		return nil, fmt.Errorf("failed to rescale balance of %s: %w", acct.Name, err)
	}

	return &Balance{Account: acct.Name, Amount: amount, Currency: bal.Currency}, nil
}

// UserReference resolves u's reference on the default receive account
func (s *OperatingServiceImpl) UserReference(ctx context.Context, u *user.User) (string, error) {
	acct, err := s.accounts.Default(account.TypeReceive)
	if err != nil {
		return "", err
	}
	prov, err := s.providers.For(acct)
	if err != nil {
		return "", err
	}
	return prov.UserReference(ctx, acct, u)
}
