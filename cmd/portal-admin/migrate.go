package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const defaultMigrationTimeout = 5 * time.Minute

func migrateCmd(open opener) *cobra.Command {
	var (
		status  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd, open, func(ctx context.Context, in *infra) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				pending, err := in.Migrator.Pending(ctx)
				if err != nil {
					return fmt.Errorf("list pending migrations: %w", err)
				}
				out := cmd.OutOrStdout()
				if status || len(pending) == 0 {
					if len(pending) == 0 {
						_, err = fmt.Fprintln(out, "schema is up to date")
						return err
					}
					for _, v := range pending {
						if _, err = fmt.Fprintf(out, "pending %s\n", v); err != nil {
							return err
						}
					}
					return nil
				}

				if err = in.Migrator.Run(ctx); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				_, err = fmt.Fprintf(out, "applied %d migration(s)\n", len(pending))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list pending migrations without applying them")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "migration deadline")
	return cmd
}
