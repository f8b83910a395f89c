package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terra-clan/maturity-engine/internal/framework"
)

var errInvalidFramework = errors.New("framework is invalid")

var validateFlags struct {
	json bool
}

var validateCmd = &cobra.Command{
	Use:   "validate <file|->",
	Short: "Validate a framework document",
	Long:  "Validate a JSON or YAML framework document. Exits non-zero when the document has errors;\nweight warnings alone do not fail validation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateFlags.json, "json", false, "Print the validation result as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	result := framework.ValidateBytes(data)
	out := cmd.OutOrStdout()

	if validateFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		for _, e := range result.Errors {
			fmt.Fprintf(out, "error:   %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if result.Valid {
			fmt.Fprintf(out, "%s: valid (%d warnings)\n", args[0], len(result.Warnings))
		}
	}

	if !result.Valid {
		return fmt.Errorf("%s: %w (%d errors)", args[0], errInvalidFramework, len(result.Errors))
	}
	return nil
}
