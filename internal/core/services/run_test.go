package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
	"slt-training-harness/internal/testutil"
)

func TestRunService_Start(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.TrainingRun")).Return(nil)

	run, err := svc.Start(context.Background(), "phoenix", "J1", domain.StageTrain, 0, "0", nil)
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.Equal(t, "phoenix", run.ExperimentID)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.Labels)
	repo.AssertExpectations(t)
}

func TestRunService_Start_EmptyExperiment(t *testing.T) {
	svc := NewRunService(new(testutil.MockRunRepository))

	_, err := svc.Start(context.Background(), "", "J1", domain.StageTrain, 0, "0", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidExperimentID)
}

func TestRunService_Start_InvalidStage(t *testing.T) {
	svc := NewRunService(new(testutil.MockRunRepository))

	_, err := svc.Start(context.Background(), "phoenix", "J1", domain.Stage("COMPILE"), 0, "0", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStage)
}

func TestRunService_Finish_Success(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	id := uuid.New()
	existing := &domain.TrainingRun{ID: id, Status: domain.RunStatusRunning}
	repo.On("GetByID", mock.Anything, id).Return(existing, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.TrainingRun")).Return(nil)

	run, err := svc.Finish(context.Background(), id, 0)
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, 0, *run.ExitCode)
	assert.NotNil(t, run.FinishedAt)
}

func TestRunService_Finish_NonZeroExit(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&domain.TrainingRun{ID: id}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.TrainingRun")).Return(nil)

	run, err := svc.Finish(context.Background(), id, 137)
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, 137, *run.ExitCode)
}

func TestRunService_Finish_AlreadyFinished(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	id := uuid.New()
	now := time.Now()
	repo.On("GetByID", mock.Anything, id).Return(&domain.TrainingRun{ID: id, FinishedAt: &now}, nil)

	_, err := svc.Finish(context.Background(), id, 0)
	assert.ErrorIs(t, err, domain.ErrRunAlreadyFinished)
}

func TestRunService_Finish_NotFound(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

	_, err := svc.Finish(context.Background(), id, 0)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunService_RecordScore(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(&domain.TrainingRun{ID: id}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.TrainingRun")).Return(nil)

	run, err := svc.RecordScore(context.Background(), id, 21.37)
	assert.NoError(t, err)
	assert.Equal(t, 21.37, *run.BLEU)
}

func TestRunService_RecordScore_OutOfRange(t *testing.T) {
	svc := NewRunService(new(testutil.MockRunRepository))

	_, err := svc.RecordScore(context.Background(), uuid.New(), 101)
	assert.ErrorIs(t, err, domain.ErrInvalidScore)

	_, err = svc.RecordScore(context.Background(), uuid.New(), -0.1)
	assert.ErrorIs(t, err, domain.ErrInvalidScore)
}

func TestRunService_List_DefaultLimit(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	expected := ports.RunListFilter{Limit: 20}
	repo.On("List", mock.Anything, expected).Return([]*domain.TrainingRun{}, 0, nil)

	_, _, err := svc.List(context.Background(), ports.RunListFilter{})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRunService_List_ClampsLimit(t *testing.T) {
	repo := new(testutil.MockRunRepository)
	svc := NewRunService(repo)

	expected := ports.RunListFilter{Limit: 100}
	repo.On("List", mock.Anything, expected).Return([]*domain.TrainingRun{}, 0, nil)

	_, _, err := svc.List(context.Background(), ports.RunListFilter{Limit: 5000})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
