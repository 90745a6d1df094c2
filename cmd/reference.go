package cmd

import (
	"fmt"

	"praxis-billing/billing"

	"github.com/spf13/cobra"
)

var referenceCmd = &cobra.Command{
	Use:   "reference <identifier>...",
	Short: "Compute or validate Swiss QR payment references",
	Example: `  praxis-billing reference RE-2024-0042
  praxis-billing reference --validate "21 00000 00003 13947 14300 09017"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReference,
}

var referenceValidate bool

func init() {
	referenceCmd.Flags().BoolVar(&referenceValidate, "validate", false, "treat arguments as references and check them")
	rootCmd.AddCommand(referenceCmd)
}

func runReference(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if !referenceValidate {
		for _, id := range args {
			ref := billing.GenerateReference(id)
			fmt.Fprintf(out, "%s\t%s\t%s\n", id, ref, billing.FormatReference(ref))
		}
		return nil
	}

	invalid := 0
	for _, ref := range args {
		if err := billing.ValidateReference(ref); err != nil {
			invalid++
			fmt.Fprintf(out, "%s\tINVALID\t%v\n", ref, err)
			continue
		}
		fmt.Fprintf(out, "%s\tOK\n", ref)
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d references invalid", invalid, len(args))
	}
	return nil
}
