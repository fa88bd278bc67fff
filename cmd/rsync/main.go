// Command rsync is the thin CLI entry point wiring internal/cliopts,
// pkg/protocol, pkg/flist, pkg/pipeline, and their supporting
// internal/ collaborators into a runnable transfer. Per spec.md's
// exclusion of full argument-grammar parsing from the core, this
// binary's own flag surface is deliberately small.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synctree/rsyncd/internal/cliopts"
	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/internal/stats"
)

var rootConfiguration cliopts.Options

var rootCommand = &cobra.Command{
	Use:   "rsync [flags] SOURCE... DEST",
	Short: "Transfer files incrementally over the rsync wire protocol",
	RunE: func(command *cobra.Command, arguments []string) error {
		if len(arguments) < 2 {
			return command.Usage()
		}
		rootConfiguration.ApplyArchive()

		log := logging.RootLogger.WithRole(string(errkind.RoleClient))
		if rootConfiguration.Verbose {
			log = log.WithLevel(logging.LevelDebug)
		} else if rootConfiguration.Quiet {
			log = log.WithLevel(logging.LevelError)
		}

		sources := arguments[:len(arguments)-1]
		dest := arguments[len(arguments)-1]

		result, err := Run(sources, dest, rootConfiguration, log)
		if err != nil {
			return err
		}
		if !rootConfiguration.Quiet {
			fmt.Print(stats.Report(*result))
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cliopts.Bind(rootCommand.Flags(), &rootConfiguration)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(errkind.ExitCode(err))
	}
}
