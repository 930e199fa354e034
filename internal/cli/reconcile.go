package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Database string
}

// ReconcileResult is the output of the reconcile command.
type ReconcileResult struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
}

func (r ReconcileResult) String() string {
	return fmt.Sprintf("Reconciled: %d scanned, %d repaired", r.Scanned, r.Repaired)
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair assignments whose payment succeeded but was not applied",
		Long: `Find every SUCCEEDED transaction whose assignment is not PAID and
apply the payment. Applying is idempotent, so this is safe to run while
the server is handling webhooks.

Example:
  assignly reconcile --db ./assignly.db
  assignly reconcile --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
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

	_, payments := newComponents(cfg, st, newStripe(cfg), logger)
	report, err := payments.Reconcile(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "reconcile failed", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(ReconcileResult{Scanned: report.Scanned, Repaired: report.Repaired})
}
