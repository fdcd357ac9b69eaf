package shell

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slt-training-harness/internal/core/ports/output"
)

func TestRunner_SuccessfulJob(t *testing.T) {
	r := NewRunner().WithOutput(&bytes.Buffer{}, &bytes.Buffer{})

	id, err := r.Submit(context.Background(), ports.JobSpec{Command: []string{"true"}})
	require.NoError(t, err)

	status, err := r.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, status.Done)
	assert.Equal(t, 0, status.ExitCode)
}

func TestRunner_FailingJob(t *testing.T) {
	r := NewRunner().WithOutput(&bytes.Buffer{}, &bytes.Buffer{})

	id, err := r.Submit(context.Background(), ports.JobSpec{Command: []string{"false"}})
	require.NoError(t, err)

	status, err := r.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, status.Done)
	assert.Equal(t, 1, status.ExitCode)
	assert.NotEmpty(t, status.Message)
}

func TestRunner_ForwardsEnvAndArgs(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner().WithOutput(&out, &bytes.Buffer{})

	id, err := r.Submit(context.Background(), ports.JobSpec{
		Command: []string{"sh", "-c", `echo "$NODE_RANK"`},
		Env:     map[string]string{"NODE_RANK": "2"},
	})
	require.NoError(t, err)

	_, err = r.Wait(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out.String())
}

func TestRunner_EmptyCommand(t *testing.T) {
	r := NewRunner()
	_, err := r.Submit(context.Background(), ports.JobSpec{})
	assert.Error(t, err)
}

func TestRunner_UnknownJob(t *testing.T) {
	r := NewRunner()
	_, err := r.Wait(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunner_WaitCanceled(t *testing.T) {
	r := NewRunner().WithOutput(&bytes.Buffer{}, &bytes.Buffer{})

	id, err := r.Submit(context.Background(), ports.JobSpec{Command: []string{"sleep", "5"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = r.Wait(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
