package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

type runRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) ports.RunRepository {
	return &runRepo{pool: pool}
}

const runColumns = `
	id, created_at, updated_at, experiment_id, job_id, stage, status,
	node_rank, gpu_selector, exit_code, bleu, started_at, finished_at, labels
`

func (r *runRepo) Create(ctx context.Context, run *domain.TrainingRun) error {
	labelsJSON, err := json.Marshal(run.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		INSERT INTO training_run
			(id, created_at, updated_at, experiment_id, job_id, stage, status,
			 node_rank, gpu_selector, exit_code, bleu, started_at, finished_at, labels)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID, run.CreatedAt, run.UpdatedAt,
		run.ExperimentID, run.JobID, string(run.Stage), string(run.Status),
		run.NodeRank, run.GPUSelector, run.ExitCode, run.BLEU,
		run.StartedAt, run.FinishedAt, labelsJSON,
	)
	if err != nil {
		return fmt.Errorf("create training run: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrainingRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM training_run WHERE id = $1`, runColumns)

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get training run by id: %w", err)
	}
	return run, nil
}

func (r *runRepo) Update(ctx context.Context, run *domain.TrainingRun) error {
	labelsJSON, err := json.Marshal(run.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	query := `
		UPDATE training_run
		SET status=$1, exit_code=$2, bleu=$3, started_at=$4, finished_at=$5,
			labels=$6, updated_at=NOW()
		WHERE id=$7
	`
	result, err := r.pool.Exec(ctx, query,
		string(run.Status), run.ExitCode, run.BLEU,
		run.StartedAt, run.FinishedAt, labelsJSON, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update training run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *runRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.TrainingRun, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.ExperimentID != "" {
		conditions = append(conditions, fmt.Sprintf("experiment_id = $%d", argPos))
		args = append(args, filter.ExperimentID)
		argPos++
	}
	if filter.JobID != "" {
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", argPos))
		args = append(args, filter.JobID)
		argPos++
	}
	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", argPos))
		args = append(args, filter.Stage)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM training_run WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count training runs: %w", err)
	}

	orderBy := "created_at DESC"
	if filter.SortBy != "" {
		dir := "DESC"
		if filter.Order == "asc" {
			dir = "ASC"
		}
		orderBy = fmt.Sprintf("%s %s", filter.SortBy, dir)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM training_run
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, runColumns, whereClause, orderBy, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list training runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan training run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate training run rows: %w", err)
	}

	return runs, total, nil
}

func scanRun(row pgx.Row) (*domain.TrainingRun, error) {
	run := &domain.TrainingRun{}
	var labelsJSON []byte

	err := row.Scan(
		&run.ID, &run.CreatedAt, &run.UpdatedAt,
		&run.ExperimentID, &run.JobID, &run.Stage, &run.Status,
		&run.NodeRank, &run.GPUSelector, &run.ExitCode, &run.BLEU,
		&run.StartedAt, &run.FinishedAt, &labelsJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &run.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels: %w", err)
		}
	}
	return run, nil
}
