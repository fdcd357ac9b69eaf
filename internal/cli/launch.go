package cli

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slt-training-harness/internal/barrier"
	"slt-training-harness/internal/gpumon"
	"slt-training-harness/internal/launcher"
)

var launchWithBarrier bool

var launchCmd = &cobra.Command{
	Use:   "launch [-- toolkit args...]",
	Short: "Run the toolkit entry point pinned to the assigned GPU",
	Long: `Launch starts the configured toolkit entry point with
CUDA_VISIBLE_DEVICES pinned and --node_rank appended, mirroring the child's
exit code. A background GPU utilization sampler logs to the experiment log
directory while the child runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if launchWithBarrier {
			b, err := barrier.New(barrier.Config{
				Dir:          cfg.Barrier.Dir,
				JobID:        cfg.Launcher.JobID,
				LocalRank:    cfg.Launcher.LocalRank,
				PollInterval: cfg.Barrier.PollInterval,
				Timeout:      cfg.Barrier.Timeout,
			})
			if err != nil {
				return err
			}
			if err := b.Run(cmd.Context(), nil); err != nil {
				return err
			}
		}

		l := launcher.New(cfg.Launcher)

		if cfg.Monitor.Enabled {
			if err := os.MkdirAll(cfg.Launcher.LogDir, 0o755); err != nil {
				log.WithError(err).Warn("create log directory failed, gpu monitoring disabled")
			} else {
				l = l.WithMonitor(gpumon.New(cfg.Launcher.LogDir, cfg.Launcher.ExperimentID, cfg.Monitor.Interval))
			}
		}

		code, err := l.Launch(cmd.Context(), args)
		if err != nil {
			return err
		}
		if code != 0 {
			log.WithField("exit_code", code).Error("toolkit entry point failed")
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	launchCmd.Flags().BoolVar(&launchWithBarrier, "barrier", false,
		"synchronize on the install barrier before launching")
	rootCmd.AddCommand(launchCmd)
}
