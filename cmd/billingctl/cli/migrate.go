package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/renattofarid/fertiriego/internal/platform/db"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the embedded database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := loadRuntime()
				if err != nil {
					return err
				}
				pool, err := db.New(cmd.Context(), cfg.PGDSN)
				if err != nil {
					return err
				}
				defer pool.Close()
				return db.Migrate(cmd.Context(), pool, logger)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := loadRuntime()
				if err != nil {
					return err
				}
				pool, err := db.New(cmd.Context(), cfg.PGDSN)
				if err != nil {
					return err
				}
				defer pool.Close()
				version, err := db.Rollback(cmd.Context(), pool)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d\n", version)
				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, err := loadRuntime()
				if err != nil {
					return err
				}
				pool, err := db.New(cmd.Context(), cfg.PGDSN)
				if err != nil {
					return err
				}
				defer pool.Close()
				statuses, err := db.Status(cmd.Context(), pool)
				if err != nil {
					return err
				}
				return writeMigrationStatus(cmd, statuses)
			},
		},
	)
	return cmd
}

func writeMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "VERSION\tSTATE\tPATH")
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, state, s.Path)
	}
	return tw.Flush()
}
