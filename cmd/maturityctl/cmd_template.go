package main

import (
	"github.com/spf13/cobra"

	"github.com/terra-clan/maturity-engine/internal/framework"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print a starter custom framework document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write(framework.Template())
		return err
	},
}
