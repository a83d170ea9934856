package account

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Directory is an immutable, validated view of the configured accounts.
// It is built once at startup; changing accounts requires a restart.
type Directory struct {
	byID     map[uuid.UUID]*Account
	byName   map[string]*Account
	defaults map[Type]*Account
	accounts []*Account
}

// NewDirectory indexes accounts and checks that every type that has
// accounts has exactly one default among them.
func NewDirectory(accounts []*Account) (*Directory, error) {
	d := &Directory{
		byID:     make(map[uuid.UUID]*Account, len(accounts)),
		byName:   make(map[string]*Account, len(accounts)),
		defaults: make(map[Type]*Account),
	}

	var problems []error
	seenTypes := map[Type]bool{}
	for _, acc := range accounts {
		if !acc.Type.Valid() {
			problems = append(problems, fmt.Errorf("%w: %s (account %s)", ErrInvalidType, acc.Type, acc.Name))
			continue
		}
		if _, dup := d.byName[acc.Name]; dup {
			problems = append(problems, ErrDuplicateName{Name: acc.Name})
			continue
		}
		d.byID[acc.ID] = acc
		d.byName[acc.Name] = acc
		d.accounts = append(d.accounts, acc)
		seenTypes[acc.Type] = true

		if !acc.IsDefault {
			continue
		}
		if existing, ok := d.defaults[acc.Type]; ok {
			problems = append(problems, fmt.Errorf("%w %s: %s and %s", ErrMultipleDefaults, acc.Type, existing.Name, acc.Name))
			continue
		}
		d.defaults[acc.Type] = acc
	}

	for _, t := range Types {
		if seenTypes[t] && d.defaults[t] == nil {
			problems = append(problems, fmt.Errorf("%w %s", ErrNoDefaultAccount, t))
		}
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	sort.Slice(d.accounts, func(i, j int) bool { return d.accounts[i].Name < d.accounts[j].Name })
	return d, nil
}

// Default returns the default account for t.
func (d *Directory) Default(t Type) (*Account, error) {
	acc, ok := d.defaults[t]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoDefaultAccount, t)
	}
	return acc, nil
}

// Resolve returns the named account, or the default for t when name is
// empty. A named account must serve t.
func (d *Directory) Resolve(t Type, name string) (*Account, error) {
	if name == "" {
		return d.Default(t)
	}

	acc, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccountName, name)
	}
	if acc.Type != t {
		return nil, fmt.Errorf("%w: %s is a %s account", ErrAccountTypeMismatch, name, acc.Type)
	}
	return acc, nil
}

// ByID returns the account with id.
func (d *Directory) ByID(id uuid.UUID) (*Account, error) {
	acc, ok := d.byID[id]
	if !ok {
		return nil, ErrAccountNotFound{AccountID: id}
	}
	return acc, nil
}

// All returns every account ordered by name.
func (d *Directory) All() []*Account {
	out := make([]*Account, len(d.accounts))
	copy(out, d.accounts)
	return out
}
