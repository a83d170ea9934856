package adminctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/spf13/cobra"
)

func NewAccountsCmd(backend Backend) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage provider accounts",
		Long: `Manage provider accounts.
Running services load accounts at startup; restart them after a change.`,
	}

	accountsCmd.AddCommand(newAccountsListCmd(backend))
	accountsCmd.AddCommand(newAccountsAddCmd(backend))
	accountsCmd.AddCommand(newAccountsCheckCmd(backend))

	return accountsCmd
}

func newAccountsListCmd(backend Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configured account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := backend.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			accounts, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(accounts) == 0 {
				info(out, "No accounts configured")
				return nil
			}

			data := pterm.TableData{{"ID", "Name", "Type", "Provider", "Default", "Ledger div", "Provider div"}}
			for _, acc := range accounts {
				def := ""
				if acc.IsDefault {
					def = "yes"
				}
				data = append(data, []string{
					acc.ID.String(),
					acc.Name,
					string(acc.Type),
					acc.Provider,
					def,
					strconv.Itoa(int(acc.LedgerDivisibility)),
					strconv.Itoa(int(acc.ProviderDivisibility)),
				})
			}
			if err := renderTable(out, data); err != nil {
				return err
			}
			info(out, "Total: %d accounts", len(accounts))
			return nil
		},
	}
}

type addFlags struct {
	Name         string
	Type         string
	Provider     string
	Default      bool
	LedgerDiv    int32
	ProviderDiv  int32
	Secret       string
	MetadataJSON string
}

func newAccountsAddCmd(backend Backend) *cobra.Command {
	flags := &addFlags{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := flags.account()
			if err != nil {
				return err
			}

			store, err := backend.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Create(cmd.Context(), acc); err != nil {
				return fmt.Errorf("failed to create account %s: %w", acc.Name, err)
			}

			success(cmd.OutOrStdout(), "Account %s created (%s)", acc.Name, acc.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Name, "name", "", "Unique account name")
	cmd.Flags().StringVarP(&flags.Type, "type", "t", "", "Account type (deposit, withdraw, send, receive)")
	cmd.Flags().StringVarP(&flags.Provider, "provider", "p", "", "Registered provider name")
	cmd.Flags().BoolVar(&flags.Default, "default", false, "Make this the default account for its type")
	cmd.Flags().Int32Var(&flags.LedgerDiv, "ledger-divisibility", 2, "Decimal places used by the platform ledger")
	cmd.Flags().Int32Var(&flags.ProviderDiv, "provider-divisibility", 2, "Decimal places used by the provider")
	cmd.Flags().StringVar(&flags.Secret, "secret", "", "Provider credentials as a JSON document")
	cmd.Flags().StringVar(&flags.MetadataJSON, "metadata", "", "Account metadata as a JSON object")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}

func (f *addFlags) account() (*account.Account, error) {
	acc, err := account.NewAccount(f.Name, account.Type(f.Type), f.Provider, f.Default, f.LedgerDiv, f.ProviderDiv)
	if err != nil {
		return nil, err
	}

	if f.Secret != "" {
		if !json.Valid([]byte(f.Secret)) {
			return nil, errors.New("--secret must be a JSON document")
		}
		acc.Secret = json.RawMessage(f.Secret)
	}
	if f.MetadataJSON != "" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(f.MetadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("--metadata must be a JSON object: %w", err)
		}
		acc.Metadata = metadata
	}
	return acc, nil
}

func newAccountsCheckCmd(backend Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate accounts the way the services do at startup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checker, err := backend.AccountChecker(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := checker.Check(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			data := pterm.TableData{{"Type", "Default account", "Provider"}}
			for _, t := range account.Types {
				acc, err := dir.Default(t)
				if err != nil {
					data = append(data, []string{string(t), "-", "-"})
					continue
				}
				data = append(data, []string{string(t), acc.Name, acc.Provider})
			}
			if err := renderTable(out, data); err != nil {
				return err
			}
			success(out, "%d accounts are valid", len(dir.All()))
			return nil
		},
	}
}
