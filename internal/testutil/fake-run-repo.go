package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

// FakeRunRepository is an in-memory RunRepository for flows that create and
// then re-read runs, where expectation-based mocks get unwieldy.
type FakeRunRepository struct {
	mu    sync.Mutex
	runs  map[uuid.UUID]*domain.TrainingRun
	order []uuid.UUID
}

func NewFakeRunRepository() *FakeRunRepository {
	return &FakeRunRepository{runs: make(map[uuid.UUID]*domain.TrainingRun)}
}

func (f *FakeRunRepository) Create(_ context.Context, run *domain.TrainingRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	f.order = append(f.order, run.ID)
	return nil
}

func (f *FakeRunRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.TrainingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (f *FakeRunRepository) Update(_ context.Context, run *domain.TrainingRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[run.ID]; !ok {
		return domain.ErrRunNotFound
	}
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *FakeRunRepository) List(_ context.Context, filter ports.RunListFilter) ([]*domain.TrainingRun, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.TrainingRun
	for _, id := range f.order {
		run := f.runs[id]
		if filter.ExperimentID != "" && run.ExperimentID != filter.ExperimentID {
			continue
		}
		if filter.Stage != "" && string(run.Stage) != filter.Stage {
			continue
		}
		if filter.Status != "" && string(run.Status) != filter.Status {
			continue
		}
		cp := *run
		out = append(out, &cp)
	}
	return out, len(out), nil
}

// All returns every stored run in creation order.
func (f *FakeRunRepository) All() []*domain.TrainingRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.TrainingRun, 0, len(f.order))
	for _, id := range f.order {
		cp := *f.runs[id]
		out = append(out, &cp)
	}
	return out
}
