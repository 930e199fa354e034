package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/assignly/internal/domain"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// ShowResult is an assignment with its payment attempts.
type ShowResult struct {
	Assignment   domain.Assignment    `json:"assignment"`
	Transactions []domain.Transaction `json:"transactions"`
}

func (r ShowResult) String() string {
	a := r.Assignment
	var b strings.Builder
	fmt.Fprintf(&b, "Assignment %s\n", a.ID)
	fmt.Fprintf(&b, "  title:    %s\n", a.Title)
	fmt.Fprintf(&b, "  status:   %s / %s\n", a.Status, a.PaymentStatus)
	fmt.Fprintf(&b, "  budget:   %s\n", a.Budget.StringFixed(2))
	fmt.Fprintf(&b, "  student:  %s\n", a.Student)
	if a.Provider != nil {
		fmt.Fprintf(&b, "  provider: %s\n", *a.Provider)
	}
	if a.QuotedAmount != nil {
		fmt.Fprintf(&b, "  quote:    %s\n", a.QuotedAmount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Transactions: %d", len(r.Transactions))
	for _, tx := range r.Transactions {
		fmt.Fprintf(&b, "\n  %s %s %s %s (fee %s)", tx.ID, tx.Status, tx.GatewayIntentID,
			tx.Amount.StringFixed(2), tx.PlatformFee.StringFixed(2))
	}
	return b.String()
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <assignment-id>",
		Short: "Print an assignment and its transactions",
		Long: `Print an assignment and every payment attempt recorded for it,
bypassing visibility rules. Intended for operators.

Example:
  assignly show 01928c4e-7b5a-7c3e-9f1a-2b3c4d5e6f70 --db ./assignly.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runShow(opts *ShowOptions, id string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, Overrides{Database: opts.Database})
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	a, err := st.GetAssignment(cmd.Context(), id)
	if err != nil {
		if ferr := f.Error(ErrorCode(err), err.Error(), nil); ferr != nil {
			return ferr
		}
		if domain.IsNotFound(err) {
			return WrapExitError(ExitCommandError, "unknown assignment", err)
		}
		return WrapExitError(ExitFailure, "failed to load assignment", err)
	}
	txs, err := st.ListTransactions(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load transactions", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	return f.Success(ShowResult{Assignment: a, Transactions: txs})
}
