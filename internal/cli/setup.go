package cli

import (
	"context"
	"errors"
	"os/exec"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slt-training-harness/internal/barrier"
)

var setupScript string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run one-time node setup behind the install barrier",
	Long: `Setup coordinates node-local environment preparation across the
processes sharing a worker node. The process with local rank zero runs the
setup script and publishes a marker file; every other process blocks until the
marker appears. Re-running with the same job ID is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		setup := func(ctx context.Context) error {
			if setupScript == "" {
				return nil
			}
			log.WithField("script", setupScript).Info("running node setup script")
			c := exec.CommandContext(ctx, "sh", "-c", setupScript)
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			return c.Run()
		}

		if err := b.Run(cmd.Context(), setup); err != nil {
			if errors.Is(err, barrier.ErrTimeout) {
				log.WithField("marker", b.MarkerPath()).Error("leader never published the install marker")
			}
			return err
		}

		log.WithFields(log.Fields{
			"local_rank": cfg.Launcher.LocalRank,
			"leader":     b.IsLeader(),
		}).Info("node setup complete")
		return nil
	},
}

func init() {
	setupCmd.Flags().StringVar(&setupScript, "script", "", "shell command run once per node by the leader")
	rootCmd.AddCommand(setupCmd)
}
