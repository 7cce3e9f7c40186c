package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the circulation schema and tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), *envFile, false)
			if err != nil {
				return err
			}

			defer func() { _ = rt.close() }()

			if err = rt.store.Migrate(cmd.Context()); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema %q is up to date\n", rt.store.Schema())

			return err
		},
	}
}
