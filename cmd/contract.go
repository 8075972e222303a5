package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/cim-analyzer/internal/config"
)

var contractShowPrompt bool

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Inspect the instruction contract",
}

var contractShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active contract version, model and fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("contract"); err != nil {
			return err
		}
		return showContract(cmd.OutOrStdout(), cfg, contractShowPrompt)
	},
}

func init() {
	contractShowCmd.Flags().BoolVar(&contractShowPrompt, "prompt", false, "also print the instruction text")
	contractCmd.AddCommand(contractShowCmd)
	rootCmd.AddCommand(contractCmd)
}

func showContract(w io.Writer, c *config.Config, withPrompt bool) error {
	k, err := loadContract(c)
	if err != nil {
		return err
	}
	source := c.Contract.Path
	if source == "" {
		source = "builtin"
	}
	fmt.Fprintf(w, "version:     %s\n", k.Version)
	fmt.Fprintf(w, "source:      %s\n", source)
	fmt.Fprintf(w, "model:       %s\n", k.Model)
	fmt.Fprintf(w, "max_tokens:  %d\n", k.MaxTokens)
	fmt.Fprintf(w, "fingerprint: %s\n", k.Fingerprint())
	if withPrompt {
		fmt.Fprintf(w, "\n--- system ---\n%s\n\n--- instruction ---\n%s\n", k.SystemPrompt, k.UserInstruction)
	}
	return nil
}
