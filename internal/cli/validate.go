package cli

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slt-training-harness/internal/experiment"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Validate an experiment config",
	Long: `Validate parses an experiment YAML and checks it is complete enough
to train: vocabularies present, at least one task, every task with data paths
and a well-formed node:gpu placement.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := experiment.Load(args[0])
		if err != nil {
			return err
		}
		if err := doc.Validate(); err != nil {
			return err
		}

		for name, task := range doc.Tasks {
			// Placement is optional: unplaced tasks are assigned by the toolkit.
			if task.NodeGPU == "" {
				continue
			}
			node, gpu, err := task.Placement()
			if err != nil {
				return fmt.Errorf("task %s: %w", name, err)
			}
			src, tgt := task.Pair()
			log.WithFields(log.Fields{
				"task": name,
				"pair": src + "-" + tgt,
				"node": node,
				"gpu":  gpu,
			}).Debug("task placement")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tasks, ok\n", args[0], len(doc.Tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
