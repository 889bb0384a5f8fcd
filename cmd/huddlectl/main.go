// Command huddlectl renders and serializes report content offline and runs
// database migrations.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "huddlectl",
		Short:         "Operator tools for huddle content",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "log level for diagnostics on stderr")

	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(serializeCmd())
	rootCmd.AddCommand(shortidCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

// readInput reads the named file, or stdin when the name is "-" or absent.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}
