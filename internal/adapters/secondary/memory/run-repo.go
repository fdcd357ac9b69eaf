package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

// runRepo keeps runs in process memory. It backs CLI invocations where no
// registry database is configured: runs are still recorded and reported at
// the end of the pipeline, they just do not outlive the process.
type runRepo struct {
	mu    sync.Mutex
	runs  map[uuid.UUID]*domain.TrainingRun
	order []uuid.UUID
}

func NewRunRepository() ports.RunRepository {
	return &runRepo{runs: make(map[uuid.UUID]*domain.TrainingRun)}
}

func (r *runRepo) Create(_ context.Context, run *domain.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	r.order = append(r.order, run.ID)
	return nil
}

func (r *runRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.TrainingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *runRepo) Update(_ context.Context, run *domain.TrainingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return domain.ErrRunNotFound
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *runRepo) List(_ context.Context, filter ports.RunListFilter) ([]*domain.TrainingRun, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.TrainingRun
	for _, id := range r.order {
		run := r.runs[id]
		if filter.ExperimentID != "" && run.ExperimentID != filter.ExperimentID {
			continue
		}
		if filter.JobID != "" && run.JobID != filter.JobID {
			continue
		}
		if filter.Stage != "" && string(run.Stage) != filter.Stage {
			continue
		}
		if filter.Status != "" && string(run.Status) != filter.Status {
			continue
		}
		cp := *run
		matched = append(matched, &cp)
	}

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

var _ ports.RunRepository = (*runRepo)(nil)
