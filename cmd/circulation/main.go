// Command circulation runs the library circulation service.
//
//	circulation serve     HTTP API plus the daily sweep
//	circulation sweep     one sweep, for an external cron trigger
//	circulation migrate   applies the schema
//	circulation seed      demo data for local runs
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const serviceName = "library-circulation"

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "circulation",
		Short:         "Library circulation engine: loans, reservations and fines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional file with environment variables")

	root.AddCommand(
		newServeCommand(&envFile),
		newSweepCommand(&envFile),
		newMigrateCommand(&envFile),
		newSeedCommand(&envFile),
	)

	return root
}

var timeNow = time.Now
