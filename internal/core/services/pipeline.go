package services

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"slt-training-harness/internal/bleu"
	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

// ScoreFunc computes corpus BLEU for a hypothesis/reference file pair.
// Injectable so pipeline tests do not touch the filesystem.
type ScoreFunc func(hypPath, refPath string) (bleu.Result, error)

// PipelineOptions describes one full experiment pass.
type PipelineOptions struct {
	ExperimentID string
	JobID        string
	NodeRank     int
	GPUSelector  string

	// Image is the container image for scheduled stages; ignored by the
	// local runner.
	Image string

	// ConfigPath is the experiment YAML handed to the toolkit.
	ConfigPath string

	// Checkpoint consumed by the translate stage. Empty means the toolkit
	// picks the latest.
	Checkpoint string

	// Translation inputs/outputs for the score stage.
	SourcePath     string
	HypothesisPath string
	ReferencePath  string
}

// PipelineService sequences the three experiment stages, train, translate
// and score, through a job scheduler, recording one run per stage. A stage
// failure aborts the stages behind it.
type PipelineService struct {
	scheduler ports.JobScheduler
	runs      *RunService
	score     ScoreFunc
}

func NewPipelineService(scheduler ports.JobScheduler, runs *RunService) *PipelineService {
	return &PipelineService{scheduler: scheduler, runs: runs, score: ScoreFiles}
}

// WithScoreFunc overrides the scorer.
func (p *PipelineService) WithScoreFunc(f ScoreFunc) *PipelineService {
	p.score = f
	return p
}

// Run executes train, translate, then score. It returns the runs recorded so
// far even when a stage fails, so callers can report partial progress.
func (p *PipelineService) Run(ctx context.Context, opts PipelineOptions) ([]*domain.TrainingRun, error) {
	if p.scheduler == nil {
		return nil, domain.ErrSchedulerUnavailable
	}

	var recorded []*domain.TrainingRun

	for _, stage := range []domain.Stage{domain.StageTrain, domain.StageTranslate} {
		run, err := p.executeStage(ctx, stage, opts)
		if run != nil {
			recorded = append(recorded, run)
		}
		if err != nil {
			return recorded, err
		}
	}

	run, err := p.executeScore(ctx, opts)
	if run != nil {
		recorded = append(recorded, run)
	}
	return recorded, err
}

func (p *PipelineService) executeStage(ctx context.Context, stage domain.Stage, opts PipelineOptions) (*domain.TrainingRun, error) {
	run, err := p.runs.Start(ctx, opts.ExperimentID, opts.JobID, stage, opts.NodeRank, opts.GPUSelector, nil)
	if err != nil {
		return nil, fmt.Errorf("record %s run: %w", stage, err)
	}

	spec := p.stageSpec(stage, opts)
	logger := log.WithFields(log.Fields{"stage": stage, "run_id": run.ID, "experiment": opts.ExperimentID})
	logger.Info("submitting stage")

	jobID, err := p.scheduler.Submit(ctx, spec)
	if err != nil {
		return p.abort(ctx, run), fmt.Errorf("submit %s stage: %w", stage, err)
	}

	status, err := p.scheduler.Wait(ctx, jobID)
	if err != nil {
		return p.abort(ctx, run), fmt.Errorf("wait for %s stage: %w", stage, err)
	}

	run, err = p.runs.Finish(ctx, run.ID, status.ExitCode)
	if err != nil {
		return run, fmt.Errorf("finish %s run: %w", stage, err)
	}
	if status.ExitCode != 0 {
		logger.WithField("exit_code", status.ExitCode).Error("stage failed")
		return run, fmt.Errorf("%s stage: %w: %s", stage, domain.ErrJobFailed, status.Message)
	}

	logger.Info("stage completed")
	return run, nil
}

func (p *PipelineService) executeScore(ctx context.Context, opts PipelineOptions) (*domain.TrainingRun, error) {
	run, err := p.runs.Start(ctx, opts.ExperimentID, opts.JobID, domain.StageScore, opts.NodeRank, opts.GPUSelector, nil)
	if err != nil {
		return nil, fmt.Errorf("record score run: %w", err)
	}

	result, err := p.score(opts.HypothesisPath, opts.ReferencePath)
	if err != nil {
		return p.abort(ctx, run), fmt.Errorf("compute BLEU: %w", err)
	}

	if run, err = p.runs.Finish(ctx, run.ID, 0); err != nil {
		return run, fmt.Errorf("finish score run: %w", err)
	}
	if run, err = p.runs.RecordScore(ctx, run.ID, result.Score); err != nil {
		return run, fmt.Errorf("record BLEU score: %w", err)
	}

	log.WithFields(log.Fields{
		"experiment": opts.ExperimentID,
		"bleu":       result.Score,
		"sys_len":    result.SysLen,
		"ref_len":    result.RefLen,
	}).Info("scoring completed")
	return run, nil
}

// abort marks a run failed with a sentinel exit code, keeping the original
// error as the caller's result.
func (p *PipelineService) abort(ctx context.Context, run *domain.TrainingRun) *domain.TrainingRun {
	failed, err := p.runs.Finish(ctx, run.ID, -1)
	if err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("mark run failed")
		return run
	}
	return failed
}

func (p *PipelineService) stageSpec(stage domain.Stage, opts PipelineOptions) ports.JobSpec {
	spec := ports.JobSpec{
		Name:  fmt.Sprintf("%s-%s", opts.ExperimentID, stageSuffix(stage)),
		Image: opts.Image,
		Env: map[string]string{
			"CUDA_VISIBLE_DEVICES": opts.GPUSelector,
			"EXP_ID":               opts.ExperimentID,
			"NODE_RANK":            strconv.Itoa(opts.NodeRank),
		},
		GPUs: 1,
	}

	switch stage {
	case domain.StageTrain:
		spec.Command = []string{"mammoth_train"}
		spec.Args = []string{"-config", opts.ConfigPath, "--node_rank", strconv.Itoa(opts.NodeRank)}
	case domain.StageTranslate:
		spec.Command = []string{"mammoth_translate"}
		spec.Args = []string{
			"-config", opts.ConfigPath,
			"-src", opts.SourcePath,
			"-output", opts.HypothesisPath,
		}
		if opts.Checkpoint != "" {
			spec.Args = append(spec.Args, "-model", opts.Checkpoint)
		}
	}
	return spec
}

func stageSuffix(stage domain.Stage) string {
	switch stage {
	case domain.StageTrain:
		return "train"
	case domain.StageTranslate:
		return "translate"
	default:
		return "score"
	}
}
