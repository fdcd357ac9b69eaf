package domain

import "errors"

// Not found errors
var (
	ErrRunNotFound = errors.New("training run not found")
)

// Validation errors
var (
	ErrInvalidExperimentID = errors.New("experiment ID is required")
	ErrInvalidStage        = errors.New("invalid pipeline stage")
	ErrInvalidScore        = errors.New("BLEU score must be between 0 and 100")
)

// Business rule errors
var (
	ErrRunAlreadyFinished = errors.New("training run already finished")
	ErrRunNotRunning      = errors.New("training run is not running")
)

// Scheduler errors
var (
	ErrSchedulerUnavailable = errors.New("job scheduler is not available")
	ErrJobFailed            = errors.New("scheduled job failed")
)
