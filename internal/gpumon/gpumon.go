// Package gpumon samples GPU utilization in the background while a training
// process runs. Unlike a detached logger process, the sampler has an explicit
// lifecycle: it is started alongside the training command and stopped when
// the command exits. Its output is a log artifact, never a control signal.
package gpumon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sample is one GPU's utilization at one instant.
type Sample struct {
	Index          int
	UtilizationPct int
	MemoryUsedMiB  int
	MemoryTotalMiB int
}

// QueryFunc produces raw utilization output. Injectable for tests.
type QueryFunc func(ctx context.Context) ([]byte, error)

// NvidiaSMI queries nvidia-smi in headerless CSV form.
func NvidiaSMI(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,utilization.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")
	return cmd.Output()
}

type Sampler struct {
	interval time.Duration
	logPath  string
	query    QueryFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

const defaultInterval = 5 * time.Second

// New builds a sampler writing to <logDir>/<experimentID>-<pid>.log.
// A non-positive interval falls back to the default.
func New(logDir, experimentID string, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Sampler{
		interval: interval,
		logPath:  filepath.Join(logDir, fmt.Sprintf("%s-%d.log", experimentID, os.Getpid())),
		query:    NvidiaSMI,
	}
}

// WithQuery overrides the query command.
func (s *Sampler) WithQuery(q QueryFunc) *Sampler {
	s.query = q
	return s
}

func (s *Sampler) LogPath() string {
	return s.logPath
}

// Start begins sampling until Stop is called or ctx is cancelled. Query
// failures are logged and sampling continues; a missing nvidia-smi must not
// take down the training run.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("sampler already started")
	}

	if err := os.MkdirAll(filepath.Dir(s.logPath), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open gpu log: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		defer func() { _ = f.Close() }()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sampleOnce(ctx, f)
			}
		}
	}()

	return nil
}

// Stop halts sampling and waits for the final write to complete.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	<-s.done
	s.started = false
}

func (s *Sampler) sampleOnce(ctx context.Context, f *os.File) {
	out, err := s.query(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("gpu utilization query failed")
		}
		return
	}

	samples, err := ParseSamples(out)
	if err != nil {
		log.WithError(err).Warn("parse gpu utilization output failed")
		return
	}

	ts := time.Now().UTC().Format(time.RFC3339)
	for _, sample := range samples {
		line := fmt.Sprintf("%s,%d,%d,%d,%d\n",
			ts, sample.Index, sample.UtilizationPct, sample.MemoryUsedMiB, sample.MemoryTotalMiB)
		if _, err := f.WriteString(line); err != nil {
			log.WithError(err).Warn("write gpu log failed")
			return
		}
	}
}

// ParseSamples parses "index, util, mem.used, mem.total" CSV rows as emitted
// by nvidia-smi with nounits.
func ParseSamples(out []byte) ([]Sample, error) {
	var samples []Sample
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed gpu sample line: %q", line)
		}
		vals := make([]int, 4)
		for i, field := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("malformed gpu sample field %q: %w", field, err)
			}
			vals[i] = n
		}
		samples = append(samples, Sample{
			Index:          vals[0],
			UtilizationPct: vals[1],
			MemoryUsedMiB:  vals[2],
			MemoryTotalMiB: vals[3],
		})
	}
	return samples, nil
}
