package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvcompare/internal/rules"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the rules file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), rules.Schema())
			return err
		},
	}
}
