package cli

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slt-training-harness/internal/adapters/secondary/k8sjob"
	"slt-training-harness/internal/adapters/secondary/memory"
	"slt-training-harness/internal/adapters/secondary/shell"
	"slt-training-harness/internal/core/ports/output"
	"slt-training-harness/internal/core/services"
	"slt-training-harness/internal/experiment"
)

var pipelineFlags struct {
	configPath string
	checkpoint string
	srcPath    string
	hypPath    string
	refPath    string
	local      bool
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run train, translate and score for one experiment",
	Long: `Pipeline drives a full experiment pass: the training stage, the
translation stage over the test split, and corpus BLEU scoring of the
hypotheses. Each stage is recorded as a run; a failing stage aborts the
stages behind it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := experiment.Load(pipelineFlags.configPath)
		if err != nil {
			return fmt.Errorf("load experiment config: %w", err)
		}
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("validate experiment config: %w", err)
		}

		var scheduler ports.JobScheduler
		if pipelineFlags.local || !cfg.Kubernetes.Enabled {
			scheduler = shell.NewRunner()
			log.Info("using local process runner")
		} else {
			scheduler, err = k8sjob.NewScheduler(&cfg.Kubernetes)
			if err != nil {
				return fmt.Errorf("init job scheduler: %w", err)
			}
			log.WithField("namespace", cfg.Kubernetes.Namespace).Info("using kubernetes job scheduler")
		}

		runs := services.NewRunService(memory.NewRunRepository())
		p := services.NewPipelineService(scheduler, runs)

		recorded, err := p.Run(cmd.Context(), services.PipelineOptions{
			ExperimentID:   cfg.Launcher.ExperimentID,
			JobID:          cfg.Launcher.JobID,
			NodeRank:       cfg.Launcher.NodeRank,
			GPUSelector:    cfg.Launcher.GPUSelector,
			Image:          cfg.Kubernetes.Image,
			ConfigPath:     pipelineFlags.configPath,
			Checkpoint:     pipelineFlags.checkpoint,
			SourcePath:     pipelineFlags.srcPath,
			HypothesisPath: pipelineFlags.hypPath,
			ReferencePath:  pipelineFlags.refPath,
		})

		for _, run := range recorded {
			entry := log.WithFields(log.Fields{"stage": run.Stage, "status": run.Status})
			if run.BLEU != nil {
				entry = entry.WithField("bleu", *run.BLEU)
			}
			entry.Info("run recorded")
		}
		return err
	},
}

func init() {
	pipelineCmd.Flags().StringVar(&pipelineFlags.configPath, "config", "", "experiment YAML path")
	pipelineCmd.Flags().StringVar(&pipelineFlags.checkpoint, "checkpoint", "", "model checkpoint for the translate stage")
	pipelineCmd.Flags().StringVar(&pipelineFlags.srcPath, "src", "", "source side of the test split")
	pipelineCmd.Flags().StringVar(&pipelineFlags.hypPath, "output", "pred.txt", "where the translate stage writes hypotheses")
	pipelineCmd.Flags().StringVar(&pipelineFlags.refPath, "refs", "", "reference translations, plain text or annotation CSV")
	pipelineCmd.Flags().BoolVar(&pipelineFlags.local, "local", false, "run stages as local processes")
	_ = pipelineCmd.MarkFlagRequired("config")
	_ = pipelineCmd.MarkFlagRequired("src")
	_ = pipelineCmd.MarkFlagRequired("refs")
	rootCmd.AddCommand(pipelineCmd)
}
