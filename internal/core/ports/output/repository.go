package ports

import (
	"context"

	"github.com/google/uuid"

	"slt-training-harness/internal/core/domain"
)

type RunListFilter struct {
	ExperimentID string
	JobID        string
	Stage        string
	Status       string
	SortBy       string
	Order        string
	Limit        int
	Offset       int
}

type RunRepository interface {
	Create(ctx context.Context, run *domain.TrainingRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TrainingRun, error)
	Update(ctx context.Context, run *domain.TrainingRun) error
	List(ctx context.Context, filter RunListFilter) ([]*domain.TrainingRun, int, error)
}
