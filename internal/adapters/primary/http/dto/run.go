package dto

import (
	"time"

	"github.com/google/uuid"

	"slt-training-harness/internal/core/domain"
)

type CreateRunRequest struct {
	ExperimentID string            `json:"experiment_id" binding:"required,max=100"`
	JobID        string            `json:"job_id"`
	Stage        string            `json:"stage" binding:"required"`
	NodeRank     int               `json:"node_rank"`
	GPUSelector  string            `json:"gpu_selector"`
	Labels       map[string]string `json:"labels"`
}

type FinishRunRequest struct {
	ExitCode int `json:"exit_code"`
}

// RecordScoreRequest carries the BLEU score as a pointer: zero is a valid
// corpus score and must survive required-field validation.
type RecordScoreRequest struct {
	BLEU *float64 `json:"bleu" binding:"required"`
}

type RunResponse struct {
	ID           uuid.UUID         `json:"id"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
	ExperimentID string            `json:"experiment_id"`
	JobID        string            `json:"job_id"`
	Stage        string            `json:"stage"`
	Status       string            `json:"status"`
	NodeRank     int               `json:"node_rank"`
	GPUSelector  string            `json:"gpu_selector"`
	ExitCode     *int              `json:"exit_code"`
	BLEU         *float64          `json:"bleu"`
	StartedAt    *string           `json:"started_at"`
	FinishedAt   *string           `json:"finished_at"`
	Labels       map[string]string `json:"labels"`
}

type ListRunsResponse struct {
	Items      []RunResponse `json:"items"`
	Total      int           `json:"total"`
	PageSize   int           `json:"page_size"`
	NextOffset int           `json:"next_offset"`
}

func ToRunResponse(run *domain.TrainingRun) RunResponse {
	return RunResponse{
		ID:           run.ID,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    run.UpdatedAt.Format(time.RFC3339),
		ExperimentID: run.ExperimentID,
		JobID:        run.JobID,
		Stage:        string(run.Stage),
		Status:       string(run.Status),
		NodeRank:     run.NodeRank,
		GPUSelector:  run.GPUSelector,
		ExitCode:     run.ExitCode,
		BLEU:         run.BLEU,
		StartedAt:    formatTime(run.StartedAt),
		FinishedAt:   formatTime(run.FinishedAt),
		Labels:       run.Labels,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
