package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	jsonOutput bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "salesbotctl",
		Short: "Inspect how the sales assistant classifies and retrieves, without calling a model",
		Long: `salesbotctl runs the classifier and the retrieval scorers locally so sellers can
tune trigger phrases, tags and weights against a YAML corpus before publishing them.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print the full trace as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log scorer warnings to stderr")

	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newExplainCmd(opts))
	return cmd
}

func writeJSON(out io.Writer, payload any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
