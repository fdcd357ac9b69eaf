// Package launcher pins GPU visibility, supervises the utilization monitor
// and forwards arguments to the external toolkit entry point. It adds no exit
// codes of its own: the child's exit status is the launcher's result.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"

	"slt-training-harness/internal/config"
	"slt-training-harness/internal/gpumon"
)

const nodeRankFlag = "--node_rank"

type Launcher struct {
	cfg     config.LauncherConfig
	monitor *gpumon.Sampler
	stdout  io.Writer
	stderr  io.Writer
}

func New(cfg config.LauncherConfig) *Launcher {
	return &Launcher{cfg: cfg, stdout: os.Stdout, stderr: os.Stderr}
}

// WithMonitor attaches a GPU sampler started for the lifetime of the child.
func (l *Launcher) WithMonitor(m *gpumon.Sampler) *Launcher {
	l.monitor = m
	return l
}

// WithOutput redirects child stdout/stderr, used by tests.
func (l *Launcher) WithOutput(stdout, stderr io.Writer) *Launcher {
	l.stdout = stdout
	l.stderr = stderr
	return l
}

// BuildArgs forwards all caller arguments and appends the node rank derived
// from the scheduler environment.
func (l *Launcher) BuildArgs(args []string) []string {
	out := make([]string, 0, len(args)+2)
	out = append(out, args...)
	return append(out, nodeRankFlag, strconv.Itoa(l.cfg.NodeRank))
}

// BuildEnv extends the base environment with the GPU visibility selector.
func (l *Launcher) BuildEnv(base []string) []string {
	out := make([]string, 0, len(base)+1)
	out = append(out, base...)
	return append(out, "CUDA_VISIBLE_DEVICES="+l.cfg.GPUSelector)
}

// Launch runs the toolkit entry point with the forwarded arguments and
// returns the child's exit code. A non-zero child exit is not an error here;
// infrastructure failures (entry point missing, start failure) are.
func (l *Launcher) Launch(ctx context.Context, args []string) (int, error) {
	forwarded := l.BuildArgs(args)

	log.WithFields(log.Fields{
		"entrypoint": l.cfg.EntryPoint,
		"node_rank":  l.cfg.NodeRank,
		"gpu":        l.cfg.GPUSelector,
		"experiment": l.cfg.ExperimentID,
	}).Info("launching toolkit entry point")

	if l.monitor != nil {
		if err := l.monitor.Start(ctx); err != nil {
			log.WithError(err).Warn("gpu monitor failed to start, continuing without it")
		} else {
			defer l.monitor.Stop()
		}
	}

	cmd := exec.CommandContext(ctx, l.cfg.EntryPoint, forwarded...)
	cmd.Env = l.BuildEnv(os.Environ())
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	cmd.Stdin = os.Stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("run %s: %w", l.cfg.EntryPoint, err)
}
