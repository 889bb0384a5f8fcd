package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"huddle/api/internal/content"
	"huddle/api/internal/logging"
)

func renderCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Render stored content to markup",
		Long: `Render stored content to markup without a database.

No lookups are made, so every task and user reference renders as an
unresolved chip: tasks show their short id, users show "User".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "auto", "plain", "markup":
			default:
				return fmt.Errorf("unknown format %q (want auto, plain or markup)", format)
			}
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			parser := content.NewParser(nil, logging.Console(level, cmd.ErrOrStderr()))

			res := parser.ParseDocument(context.Background(), content.ParseFormat(format, strings.TrimRight(string(raw), "\n")))
			if res.Degraded() {
				return fmt.Errorf("render failed: %w", res.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "auto", "input format: auto, plain or markup")
	return cmd
}

func serializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serialize [file|-]",
		Short: "Convert an editor JSON document to stored text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			doc, err := content.DecodeNode(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content.Serialize(doc))
			return nil
		},
	}
}
