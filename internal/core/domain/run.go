package domain

import (
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageTrain     Stage = "TRAIN"
	StageTranslate Stage = "TRANSLATE"
	StageScore     Stage = "SCORE"
)

func (s Stage) Valid() bool {
	switch s {
	case StageTrain, StageTranslate, StageScore:
		return true
	}
	return false
}

type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// TrainingRun is one stage execution of an experiment on one node. The
// harness records a run per pipeline stage; the BLEU score is attached to
// the SCORE stage once computed.
type TrainingRun struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExperimentID string
	JobID        string
	Stage        Stage
	Status       RunStatus
	NodeRank     int
	GPUSelector  string
	ExitCode     *int
	BLEU         *float64
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Labels       map[string]string
}
