package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"huddle/api/internal/shortid"
)

func shortidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortid",
		Short: "Convert between task ids and short ids",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <task-id>",
		Short: "Print the short id of a full task id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			short := shortid.Encode(args[0])
			if short == "" {
				return fmt.Errorf("%q does not start with six hex digits", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), short)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decode <short-id>",
		Short: "Print the id prefix a short id stands for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := shortid.Decode(args[0])
			if prefix == "" {
				return fmt.Errorf("%q is not a short id", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), prefix)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <token>",
		Short: "Report whether a token is written in short form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if shortid.IsShortForm(args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "short")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "full")
			}
			return nil
		},
	})

	return cmd
}
