// Package experiment models the YAML configuration document consumed by the
// external translation toolkit. The schema is owned by the toolkit; this
// package only loads, validates and writes the values the harness supplies.
package experiment

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoTasks         = errors.New("experiment defines no tasks")
	ErrMissingVocab    = errors.New("source and target vocabulary paths are required")
	ErrMissingDataPath = errors.New("task is missing a train data path")
	ErrBadPlacement    = errors.New("node_gpu placement must be of the form <node>:<gpu>")
)

// Experiment is the toolkit configuration document. Field tags mirror the
// toolkit's YAML keys verbatim.
type Experiment struct {
	SrcVocab string `yaml:"src_vocab"`
	TgtVocab string `yaml:"tgt_vocab"`

	Tasks map[string]Task `yaml:"tasks"`

	// Training hyperparameters
	BatchSize      int     `yaml:"batch_size"`
	BatchType      string  `yaml:"batch_type"`
	ModelDim       int     `yaml:"model_dim"`
	TransformerFF  int     `yaml:"transformer_ff"`
	EncLayers      int     `yaml:"enc_layers"`
	DecLayers      int     `yaml:"dec_layers"`
	Heads          int     `yaml:"heads"`
	Dropout        float64 `yaml:"dropout"`
	LabelSmoothing float64 `yaml:"label_smoothing"`

	// Optimizer
	Optim        string  `yaml:"optim"`
	LearningRate float64 `yaml:"learning_rate"`
	WarmupSteps  int     `yaml:"warmup_steps"`
	DecayMethod  string  `yaml:"decay_method"`
	AdamBeta1    float64 `yaml:"adam_beta1"`
	AdamBeta2    float64 `yaml:"adam_beta2"`

	// Schedule and checkpointing
	TrainSteps          int    `yaml:"train_steps"`
	ValidSteps          int    `yaml:"valid_steps"`
	SaveModel           string `yaml:"save_model"`
	SaveCheckpointSteps int    `yaml:"save_checkpoint_steps"`

	// Early stopping
	EarlyStopping         int      `yaml:"early_stopping"`
	EarlyStoppingCriteria []string `yaml:"early_stopping_criteria,omitempty"`

	WorldSize int   `yaml:"world_size"`
	GPURanks  []int `yaml:"gpu_ranks,flow"`
}

// Task is one named training objective: a language pair with its
// parameter-sharing groups, GPU placement, data paths and tokenizer model.
type Task struct {
	SrcTgt          string   `yaml:"src_tgt"`
	EncSharingGroup []string `yaml:"enc_sharing_group,flow"`
	DecSharingGroup []string `yaml:"dec_sharing_group,flow"`
	NodeGPU         string   `yaml:"node_gpu"`
	PathSrc         string   `yaml:"path_src"`
	PathTgt         string   `yaml:"path_tgt"`
	PathValidSrc    string   `yaml:"path_valid_src,omitempty"`
	PathValidTgt    string   `yaml:"path_valid_tgt,omitempty"`
	Transforms      []string `yaml:"transforms,flow,omitempty"`
	SrcSubwordModel string   `yaml:"src_subword_model,omitempty"`
	TgtSubwordModel string   `yaml:"tgt_subword_model,omitempty"`
}

// Placement splits a "node:gpu" pair.
func (t Task) Placement() (node, gpu int, err error) {
	parts := strings.Split(t.NodeGPU, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadPlacement, t.NodeGPU)
	}
	node, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadPlacement, t.NodeGPU)
	}
	gpu, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadPlacement, t.NodeGPU)
	}
	return node, gpu, nil
}

// Pair splits src_tgt into its source and target languages.
func (t Task) Pair() (src, tgt string) {
	parts := strings.SplitN(t.SrcTgt, "-", 2)
	if len(parts) != 2 {
		return t.SrcTgt, ""
	}
	return parts[0], parts[1]
}

func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Experiment, error) {
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse experiment config: %w", err)
	}
	return &exp, nil
}

// Validate checks only what the harness itself relies on; full schema
// validation belongs to the toolkit.
func (e *Experiment) Validate() error {
	if e.SrcVocab == "" || e.TgtVocab == "" {
		return ErrMissingVocab
	}
	if len(e.Tasks) == 0 {
		return ErrNoTasks
	}
	for name, task := range e.Tasks {
		if task.PathSrc == "" || task.PathTgt == "" {
			return fmt.Errorf("task %q: %w", name, ErrMissingDataPath)
		}
		if task.NodeGPU != "" {
			if _, _, err := task.Placement(); err != nil {
				return fmt.Errorf("task %q: %w", name, err)
			}
		}
	}
	return nil
}

// Write renders the document back to YAML for the toolkit to consume.
func (e *Experiment) Write(path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal experiment config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write experiment config: %w", err)
	}
	return nil
}
