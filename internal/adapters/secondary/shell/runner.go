package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"slt-training-harness/internal/core/ports/output"
)

// Runner executes job specs as local processes. It backs single-node
// experiments where no cluster scheduler is available.
type Runner struct {
	mu     sync.Mutex
	jobs   map[string]*job
	stdout io.Writer
	stderr io.Writer
}

type job struct {
	cmd  *exec.Cmd
	done chan struct{}

	exitCode int
	err      error
}

func NewRunner() *Runner {
	return &Runner{
		jobs:   make(map[string]*job),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithOutput redirects process output, used by tests.
func (r *Runner) WithOutput(stdout, stderr io.Writer) *Runner {
	r.stdout = stdout
	r.stderr = stderr
	return r
}

func (r *Runner) Submit(ctx context.Context, spec ports.JobSpec) (string, error) {
	if len(spec.Command) == 0 {
		return "", errors.New("empty command")
	}

	args := append(append([]string{}, spec.Command[1:]...), spec.Args...)
	cmd := exec.CommandContext(ctx, spec.Command[0], args...)
	cmd.Dir = spec.WorkingDir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", spec.Command[0], err)
	}

	id := uuid.NewString()
	j := &job{cmd: cmd, done: make(chan struct{})}

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	log.WithFields(log.Fields{"job_id": id, "command": spec.Command[0], "pid": cmd.Process.Pid}).
		Debug("local job started")

	go func() {
		defer close(j.done)
		err := cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			j.exitCode = 0
		case errors.As(err, &exitErr):
			j.exitCode = exitErr.ExitCode()
		default:
			j.exitCode = -1
			j.err = err
		}
	}()

	return id, nil
}

func (r *Runner) Wait(ctx context.Context, id string) (*ports.JobStatus, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %q", id)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
	}

	if j.err != nil {
		return nil, fmt.Errorf("wait for job %s: %w", id, j.err)
	}

	status := &ports.JobStatus{ID: id, Done: true, ExitCode: j.exitCode}
	if j.exitCode != 0 {
		status.Message = fmt.Sprintf("process exited with code %d", j.exitCode)
	}
	return status, nil
}

// Ensure interface compliance
var _ ports.JobScheduler = (*Runner)(nil)
