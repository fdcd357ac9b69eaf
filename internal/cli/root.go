package cli

import (
	"context"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slt-training-harness/internal/config"
)

var (
	cfg      *config.Config
	initOnce sync.Once
)

var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "Operational harness for multilingual sign-language translation training",
	Long: `harness wraps the NMT toolkit for sign-language-to-text experiments.
It pins training processes to their assigned GPU, coordinates node-local
environment setup across co-located workers, drives the train/translate/score
pipeline and records the resulting runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		initOnce.Do(func() {
			cfg, err = config.Load()
			if err != nil {
				return
			}
			initLogger(cfg)
		})
		return err
	},
	SilenceUsage: true,
}

// ExecuteContext runs the root command under a signal-aware context so long
// running commands shut down cleanly on SIGINT/SIGTERM.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
