package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

// MockRunRepository is a mock of RunRepository.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *domain.TrainingRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrainingRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrainingRun), args.Error(1)
}

func (m *MockRunRepository) Update(ctx context.Context, run *domain.TrainingRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.TrainingRun, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.TrainingRun), args.Int(1), args.Error(2)
}

// MockJobScheduler is a mock of JobScheduler.
type MockJobScheduler struct {
	mock.Mock
}

func (m *MockJobScheduler) Submit(ctx context.Context, spec ports.JobSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *MockJobScheduler) Wait(ctx context.Context, id string) (*ports.JobStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.JobStatus), args.Error(1)
}
