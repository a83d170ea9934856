package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rehive/adapter-framework/internal/domain/shared"
	"github.com/rehive/adapter-framework/internal/domain/user"
)

var (
	ErrUnauthenticated = errors.New("token rejected by platform")
	ErrCompanyMismatch = errors.New("user belongs to another company")
)

// AuthServiceImpl implements the AuthService interface
type AuthServiceImpl struct {
	verifier TokenVerifier
	users    user.Repository
	company  string
	logger   *slog.Logger
}

// NewAuthService creates a new auth service. An empty company accepts users
// of any company.
func NewAuthService(logger *slog.Logger, verifier TokenVerifier, users user.Repository, company string) AuthService {
	return &AuthServiceImpl{
		verifier: verifier,
		users:    users,
		company:  company,
		logger:   logger,
	}
}

// AuthenticateUser verifies token with the platform and upserts the ledger user
func (s *AuthServiceImpl) AuthenticateUser(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	profile, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		if shared.IsRejection(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, err
	}

	if s.company != "" && profile.Company != s.company {
		s.logger.Warn("Rejected user of another company", "identifier", profile.Identifier, "company", profile.Company)
		return nil, ErrCompanyMismatch
	}

	candidate, err := user.FromProfile(*profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	stored, err := s.users.Upsert(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to store user %s: %w", candidate.Identifier, err)
	}
	return stored, nil
}
