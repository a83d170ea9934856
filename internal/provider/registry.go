package provider

import (
	"errors"
	"fmt"

	"github.com/rehive/adapter-framework/internal/domain/account"
)

var ErrUnknownProvider = errors.New("no provider registered under name")

// Registry binds provider names stored on accounts to the implementations
// constructed by the binary. It is built once in main and passed down.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns a registry holding providers. Duplicate names are an error.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, dup := r.providers[p.Name()]; dup {
			return nil, fmt.Errorf("provider %q registered twice", p.Name())
		}
		r.providers[p.Name()] = p
	}
	return r, nil
}

// For returns the provider serving acct.
func (r *Registry) For(acct *account.Account) (Provider, error) {
	p, ok := r.providers[acct.Provider]
	if !ok {
		return nil, fmt.Errorf("%w %q (account %s)", ErrUnknownProvider, acct.Provider, acct.Name)
	}
	return p, nil
}

// Validate checks every account in dir is served by a registered provider.
func (r *Registry) Validate(dir *account.Directory) error {
	var problems []error
	for _, acct := range dir.All() {
		if _, err := r.For(acct); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}
