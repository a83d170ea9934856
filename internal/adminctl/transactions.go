package adminctl

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/spf13/cobra"
)

const requeueOperation = "requeue"

func NewTxCmd(backend Backend) *cobra.Command {
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect and repair transactions",
	}

	txCmd.AddCommand(newTxShowCmd(backend))
	txCmd.AddCommand(newTxCancelCmd(backend))
	txCmd.AddCommand(newTxRequeueCmd(backend))

	return txCmd
}

func newTxShowCmd(backend Backend) *cobra.Command {
	var events int

	cmd := &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show a transaction and its recent audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			txs, err := backend.Transactions(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := txs.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			out := cmd.OutOrStdout()
			if err := renderTransaction(out, tx); err != nil {
				return err
			}
			if events <= 0 {
				return nil
			}

			trail, err := backend.Audit(cmd.Context())
			if err != nil {
				return err
			}
			list, err := trail.ListByTransactionID(cmd.Context(), id, events, 0)
			if err != nil {
				return fmt.Errorf("failed to read audit trail: %w", err)
			}
			if len(list) == 0 {
				info(out, "No audit events recorded")
				return nil
			}

			data := pterm.TableData{{"Recorded", "Operation", "From", "To", "Attempt", "Outcome", "Detail"}}
			for _, e := range list {
				data = append(data, []string{
					e.RecordedAt.Format(time.RFC3339),
					e.Operation,
					string(e.FromStatus),
					string(e.ToStatus),
					strconv.Itoa(e.Attempt),
					e.Outcome,
					e.Detail,
				})
			}
			return renderTable(out, data)
		},
	}

	cmd.Flags().IntVarP(&events, "events", "e", 20, "Number of audit events to show, 0 to skip")
	return cmd
}

func newTxCancelCmd(backend Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <transaction-id>",
		Short: "Cancel a transaction that has not reached a final status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			txs, err := backend.Transactions(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := txs.Cancel(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to cancel transaction: %w", err)
			}

			success(cmd.OutOrStdout(), "Transaction %s is %s", tx.ID, tx.Status)
			return nil
		},
	}
}

func newTxRequeueCmd(backend Backend) *cobra.Command {
	var attempt int

	cmd := &cobra.Command{
		Use:   "requeue <transaction-id>",
		Short: "Queue a platform reconciliation for a stuck transaction",
		Long: `Queue a platform reconciliation for a stuck transaction.
The reconciler picks the job up and re-runs upload and confirmation.
Passing --attempt 0 gives the transaction a fresh retry budget.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if attempt < 0 {
				return fmt.Errorf("--attempt cannot be negative, got %d", attempt)
			}

			txs, err := backend.Transactions(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := txs.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}
			if tx.Status.IsTerminal() {
				return &transaction.InvalidStateError{TransactionID: tx.ID, Status: tx.Status, Operation: requeueOperation}
			}

			jobs, err := backend.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			j := job.NewReconcile(tx.ID, attempt, "adapterctl-"+uuid.NewString())
			if err := jobs.PublishJob(cmd.Context(), j); err != nil {
				return fmt.Errorf("failed to queue reconciliation: %w", err)
			}

			success(cmd.OutOrStdout(), "Queued job %s for transaction %s (attempt %d)", j.ID, tx.ID, attempt)
			return nil
		},
	}

	cmd.Flags().IntVarP(&attempt, "attempt", "a", 0, "Attempt number the reconciliation runs as")
	return cmd
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid transaction ID: %s", raw)
	}
	return id, nil
}

func renderTransaction(out io.Writer, tx *transaction.Transaction) error {
	completed := "-"
	if tx.CompletedAt != nil {
		completed = tx.CompletedAt.Format(time.RFC3339)
	}

	data := pterm.TableData{
		{"Field", "Value"},
		{"ID", tx.ID.String()},
		{"Type", string(tx.Type)},
		{"Status", string(tx.Status)},
		{"Account", tx.AccountID.String()},
		{"Amount", fmt.Sprintf("%d %s", tx.Amount, tx.Currency)},
		{"Fee", strconv.FormatInt(tx.Fee, 10)},
		{"From", tx.FromReference},
		{"To", tx.ToReference},
		{"External ID", tx.ExternalID},
		{"Platform code", tx.PlatformCode},
		{"Provider confirmed", strconv.FormatBool(tx.ProviderConfirmed)},
		{"Created", tx.CreatedAt.Format(time.RFC3339)},
		{"Updated", tx.UpdatedAt.Format(time.RFC3339)},
		{"Completed", completed},
	}
	return renderTable(out, data)
}
