package launcher

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slt-training-harness/internal/config"
	"slt-training-harness/internal/gpumon"
)

func TestBuildArgs_AppendsNodeRank(t *testing.T) {
	l := New(config.LauncherConfig{NodeRank: 2})
	args := l.BuildArgs([]string{"-config", "config.yaml", "-tensorboard"})
	assert.Equal(t, []string{"-config", "config.yaml", "-tensorboard", "--node_rank", "2"}, args)
}

func TestBuildArgs_EmptyForward(t *testing.T) {
	l := New(config.LauncherConfig{NodeRank: 0})
	assert.Equal(t, []string{"--node_rank", "0"}, l.BuildArgs(nil))
}

func TestBuildEnv_PinsGPU(t *testing.T) {
	l := New(config.LauncherConfig{GPUSelector: "1"})
	env := l.BuildEnv([]string{"PATH=/usr/bin"})
	assert.Contains(t, env, "CUDA_VISIBLE_DEVICES=1")
	assert.Contains(t, env, "PATH=/usr/bin")
}

func TestLaunch_PropagatesZeroExit(t *testing.T) {
	var out bytes.Buffer
	l := New(config.LauncherConfig{EntryPoint: "true"}).WithOutput(&out, &out)

	code, err := l.Launch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestLaunch_PropagatesNonZeroExit(t *testing.T) {
	var out bytes.Buffer
	l := New(config.LauncherConfig{EntryPoint: "false"}).WithOutput(&out, &out)

	code, err := l.Launch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestLaunch_MissingEntryPoint(t *testing.T) {
	l := New(config.LauncherConfig{EntryPoint: "definitely-not-a-binary-xyz"})
	code, err := l.Launch(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestLaunch_ForwardsArguments(t *testing.T) {
	var out bytes.Buffer
	l := New(config.LauncherConfig{EntryPoint: "echo", NodeRank: 3}).WithOutput(&out, &out)

	code, err := l.Launch(context.Background(), []string{"-config", "cfg.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "-config cfg.yaml --node_rank 3\n", out.String())
}

func TestLaunch_MonitorStoppedAfterExit(t *testing.T) {
	dir := t.TempDir()
	sampler := gpumon.New(dir, "exp", 5*time.Millisecond).WithQuery(func(context.Context) ([]byte, error) {
		return []byte("0, 1, 2, 3\n"), nil
	})

	var out bytes.Buffer
	// sh -c treats the appended node-rank flag as positional parameters.
	l := New(config.LauncherConfig{EntryPoint: "sh"}).
		WithMonitor(sampler).
		WithOutput(&out, &out)

	code, err := l.Launch(context.Background(), []string{"-c", "sleep 0.05"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// Launch returned, so Stop already ran; restarting must succeed.
	require.NoError(t, sampler.Start(context.Background()))
	sampler.Stop()
}
