package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"slt-training-harness/internal/core/services"
)

var scoreFlags struct {
	hypPath string
	refPath string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute corpus BLEU for a hypothesis file",
	Long: `Score decodes subword hypotheses, loads references from plain text
or an annotation CSV, and prints corpus BLEU with per-order precisions and the
brevity penalty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := services.ScoreFiles(scoreFlags.hypPath, scoreFlags.refPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.String())
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreFlags.hypPath, "hyp", "", "hypothesis file written by the translate stage")
	scoreCmd.Flags().StringVar(&scoreFlags.refPath, "refs", "", "reference translations, plain text or annotation CSV")
	_ = scoreCmd.MarkFlagRequired("hyp")
	_ = scoreCmd.MarkFlagRequired("refs")
	rootCmd.AddCommand(scoreCmd)
}
