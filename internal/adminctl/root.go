package adminctl

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the adapterctl command tree.
func NewRootCmd(backend Backend) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "adapterctl",
		Short:         "adapterctl administers the payment adapter",
		Long:          `adapterctl is the operator tool for the payment adapter.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(NewMigrateCmd(backend))
	rootCmd.AddCommand(NewAccountsCmd(backend))
	rootCmd.AddCommand(NewTxCmd(backend))

	return rootCmd
}

// Execute runs the command tree and reports a failure on stderr.
func Execute(backend Backend, args []string) int {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	rootCmd := NewRootCmd(backend)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(rootCmd.ErrOrStderr(), pterm.Error.Sprintln(capitalize(err.Error())))
		return 1
	}
	return 0
}

func success(out io.Writer, format string, args ...any) {
	fmt.Fprint(out, pterm.Success.Sprintfln(format, args...))
}

func info(out io.Writer, format string, args ...any) {
	fmt.Fprint(out, pterm.Info.Sprintfln(format, args...))
}

func renderTable(out io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return strings.TrimSpace(string(runes))
}
