package ports

import "context"

// JobSpec holds everything needed to run one pipeline stage. It is general
// enough for both the container scheduler and the local process runner;
// adapters extract the fields relevant to them.
type JobSpec struct {
	Name       string
	Image      string
	Command    []string
	Args       []string
	Env        map[string]string
	WorkingDir string
	GPUs       int
}

type JobStatus struct {
	ID       string
	Done     bool
	ExitCode int
	Message  string
}

// JobScheduler submits pipeline stages for execution and waits for their
// completion.
type JobScheduler interface {
	Submit(ctx context.Context, spec JobSpec) (string, error)
	Wait(ctx context.Context, id string) (*JobStatus, error)
}
