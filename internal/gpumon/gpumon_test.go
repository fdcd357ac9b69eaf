package gpumon

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSamples(t *testing.T) {
	out := []byte("0, 87, 10240, 16384\n1, 12, 512, 16384\n")
	samples, err := ParseSamples(out)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, Sample{Index: 0, UtilizationPct: 87, MemoryUsedMiB: 10240, MemoryTotalMiB: 16384}, samples[0])
	assert.Equal(t, 1, samples[1].Index)
	assert.Equal(t, 12, samples[1].UtilizationPct)
}

func TestParseSamples_Empty(t *testing.T) {
	samples, err := ParseSamples([]byte("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestParseSamples_Malformed(t *testing.T) {
	_, err := ParseSamples([]byte("0, 87\n"))
	assert.Error(t, err)

	_, err = ParseSamples([]byte("0, eighty, 1, 2\n"))
	assert.Error(t, err)
}

func TestSamplerLifecycle(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "exp1", 10*time.Millisecond).WithQuery(func(context.Context) ([]byte, error) {
		return []byte("0, 50, 1024, 16384\n"), nil
	})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	data, err := os.ReadFile(s.LogPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasSuffix(lines[0], ",0,50,1024,16384"))

	// Stop after Stop is a no-op.
	s.Stop()
}

func TestSamplerLogPathNaming(t *testing.T) {
	s := New("logs", "phoenix", time.Second)
	assert.Contains(t, s.LogPath(), fmt.Sprintf("phoenix-%d.log", os.Getpid()))
}

func TestSamplerSurvivesQueryFailure(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "exp1", 10*time.Millisecond).WithQuery(func(context.Context) ([]byte, error) {
		return nil, fmt.Errorf("nvidia-smi not found")
	})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	data, err := os.ReadFile(s.LogPath())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSamplerNonPositiveIntervalDefaults(t *testing.T) {
	s := New(t.TempDir(), "exp1", 0).WithQuery(func(context.Context) ([]byte, error) {
		return nil, nil
	})
	assert.Equal(t, defaultInterval, s.interval)

	// The ticker must not panic on start.
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSamplerDoubleStart(t *testing.T) {
	s := New(t.TempDir(), "exp1", time.Second).WithQuery(func(context.Context) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}
