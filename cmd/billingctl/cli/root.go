package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/renattofarid/fertiriego/internal/app"
)

// NewRootCommand assembles the operator command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operational helpers for the billing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(), newBreakdownCommand(), newJobsCommand())
	return root
}

// loadRuntime reads configuration and builds the logger shared by commands
// that reach external systems.
func loadRuntime() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg), nil
}
