package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

type RunService struct {
	repo ports.RunRepository
}

func NewRunService(repo ports.RunRepository) *RunService {
	return &RunService{repo: repo}
}

// Start records a new run for one pipeline stage and marks it running.
func (s *RunService) Start(ctx context.Context, experimentID, jobID string, stage domain.Stage, nodeRank int, gpuSelector string, labels map[string]string) (*domain.TrainingRun, error) {
	if experimentID == "" {
		return nil, domain.ErrInvalidExperimentID
	}
	if !stage.Valid() {
		return nil, domain.ErrInvalidStage
	}
	if labels == nil {
		labels = make(map[string]string)
	}

	now := time.Now()
	run := &domain.TrainingRun{
		ID:           uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
		ExperimentID: experimentID,
		JobID:        jobID,
		Stage:        stage,
		Status:       domain.RunStatusRunning,
		NodeRank:     nodeRank,
		GPUSelector:  gpuSelector,
		StartedAt:    &now,
		Labels:       labels,
	}

	if err := s.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Finish closes a run with the stage's exit code: zero succeeds, anything
// else fails.
func (s *RunService) Finish(ctx context.Context, id uuid.UUID, exitCode int) (*domain.TrainingRun, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.FinishedAt != nil {
		return nil, domain.ErrRunAlreadyFinished
	}

	now := time.Now()
	run.ExitCode = &exitCode
	run.FinishedAt = &now
	run.UpdatedAt = now
	if exitCode == 0 {
		run.Status = domain.RunStatusSucceeded
	} else {
		run.Status = domain.RunStatusFailed
	}

	if err := s.repo.Update(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// RecordScore attaches a BLEU score to a run.
func (s *RunService) RecordScore(ctx context.Context, id uuid.UUID, score float64) (*domain.TrainingRun, error) {
	if score < 0 || score > 100 {
		return nil, domain.ErrInvalidScore
	}

	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	run.BLEU = &score
	run.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*domain.TrainingRun, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RunService) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.TrainingRun, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}
