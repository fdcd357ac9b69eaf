package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slt-training-harness/internal/bleu"
	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
	"slt-training-harness/internal/testutil"
)

func pipelineOpts() PipelineOptions {
	return PipelineOptions{
		ExperimentID:   "phoenix",
		JobID:          "J1",
		NodeRank:       0,
		GPUSelector:    "0",
		ConfigPath:     "config.yaml",
		SourcePath:     "test.sign",
		HypothesisPath: "pred.txt",
		ReferencePath:  "refs.txt",
	}
}

func fixedScore(score float64) ScoreFunc {
	return func(string, string) (bleu.Result, error) {
		return bleu.Result{Score: score}, nil
	}
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	repo := testutil.NewFakeRunRepository()
	sched := new(testutil.MockJobScheduler)
	p := NewPipelineService(sched, NewRunService(repo)).WithScoreFunc(fixedScore(18.4))

	var submitted []string
	sched.On("Submit", mock.Anything, mock.AnythingOfType("ports.JobSpec")).
		Run(func(args mock.Arguments) {
			spec := args.Get(1).(ports.JobSpec)
			submitted = append(submitted, spec.Command[0])
		}).
		Return("job-1", nil)
	sched.On("Wait", mock.Anything, "job-1").Return(&ports.JobStatus{Done: true, ExitCode: 0}, nil)

	runs, err := p.Run(context.Background(), pipelineOpts())
	require.NoError(t, err)

	assert.Equal(t, []string{"mammoth_train", "mammoth_translate"}, submitted)
	require.Len(t, runs, 3)
	assert.Equal(t, domain.StageTrain, runs[0].Stage)
	assert.Equal(t, domain.StageTranslate, runs[1].Stage)
	assert.Equal(t, domain.StageScore, runs[2].Stage)
	for _, run := range runs {
		assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	}
	assert.InDelta(t, 18.4, *runs[2].BLEU, 1e-9)
}

func TestPipeline_TrainFailureAbortsRest(t *testing.T) {
	repo := testutil.NewFakeRunRepository()
	sched := new(testutil.MockJobScheduler)
	p := NewPipelineService(sched, NewRunService(repo)).WithScoreFunc(fixedScore(0))

	sched.On("Submit", mock.Anything, mock.AnythingOfType("ports.JobSpec")).Return("job-1", nil).Once()
	sched.On("Wait", mock.Anything, "job-1").
		Return(&ports.JobStatus{Done: true, ExitCode: 1, Message: "OOM"}, nil).Once()

	runs, err := p.Run(context.Background(), pipelineOpts())
	assert.ErrorIs(t, err, domain.ErrJobFailed)

	// Only the train run was recorded, and it is failed.
	require.Len(t, runs, 1)
	assert.Equal(t, domain.StageTrain, runs[0].Stage)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	sched.AssertNumberOfCalls(t, "Submit", 1)
}

func TestPipeline_SubmitError(t *testing.T) {
	repo := testutil.NewFakeRunRepository()
	sched := new(testutil.MockJobScheduler)
	p := NewPipelineService(sched, NewRunService(repo))

	sched.On("Submit", mock.Anything, mock.AnythingOfType("ports.JobSpec")).
		Return("", errors.New("cluster unreachable"))

	runs, err := p.Run(context.Background(), pipelineOpts())
	assert.Error(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
}

func TestPipeline_ScoreFailureMarksRunFailed(t *testing.T) {
	repo := testutil.NewFakeRunRepository()
	sched := new(testutil.MockJobScheduler)
	p := NewPipelineService(sched, NewRunService(repo)).WithScoreFunc(
		func(string, string) (bleu.Result, error) {
			return bleu.Result{}, errors.New("pred.txt missing")
		})

	sched.On("Submit", mock.Anything, mock.AnythingOfType("ports.JobSpec")).Return("job-1", nil)
	sched.On("Wait", mock.Anything, "job-1").Return(&ports.JobStatus{Done: true, ExitCode: 0}, nil)

	runs, err := p.Run(context.Background(), pipelineOpts())
	assert.Error(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, domain.RunStatusFailed, runs[2].Status)
	assert.Nil(t, runs[2].BLEU)
}

func TestPipeline_NilScheduler(t *testing.T) {
	p := NewPipelineService(nil, NewRunService(testutil.NewFakeRunRepository()))
	_, err := p.Run(context.Background(), pipelineOpts())
	assert.ErrorIs(t, err, domain.ErrSchedulerUnavailable)
}

func TestPipeline_TranslateSpecCarriesPaths(t *testing.T) {
	repo := testutil.NewFakeRunRepository()
	sched := new(testutil.MockJobScheduler)
	p := NewPipelineService(sched, NewRunService(repo)).WithScoreFunc(fixedScore(1))

	var specs []ports.JobSpec
	sched.On("Submit", mock.Anything, mock.AnythingOfType("ports.JobSpec")).
		Run(func(args mock.Arguments) { specs = append(specs, args.Get(1).(ports.JobSpec)) }).
		Return("job-1", nil)
	sched.On("Wait", mock.Anything, "job-1").Return(&ports.JobStatus{Done: true, ExitCode: 0}, nil)

	opts := pipelineOpts()
	opts.Checkpoint = "models/phoenix_step_10000.pt"
	_, err := p.Run(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, specs, 2)
	translate := specs[1]
	assert.Contains(t, translate.Args, "-src")
	assert.Contains(t, translate.Args, "test.sign")
	assert.Contains(t, translate.Args, "-output")
	assert.Contains(t, translate.Args, "pred.txt")
	assert.Contains(t, translate.Args, "models/phoenix_step_10000.pt")
	assert.Equal(t, "0", translate.Env["CUDA_VISIBLE_DEVICES"])
}
