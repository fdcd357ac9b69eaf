// Package barrier implements the node-local install barrier: on a multi
// process worker node exactly one process (local rank zero) performs a
// one-time setup action while every co-located process blocks until the
// action completes. Completion is signaled through a marker file namespaced
// by the job ID, so the guarantee holds across processes without a
// coordinator: the marker is created only after setup returns, and followers
// observe it via filesystem visibility.
package barrier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

var (
	ErrTimeout    = errors.New("timed out waiting for install marker")
	ErrMissingDir = errors.New("barrier directory is required")
	ErrMissingJob = errors.New("barrier job ID is required")
)

const defaultPollInterval = time.Second

type Config struct {
	// Dir is the directory visible to every process on the node.
	Dir string
	// JobID namespaces the marker so runs do not observe each other's
	// markers. Expected to be unique per run.
	JobID string
	// LocalRank selects the leader: rank zero installs, everyone else waits.
	LocalRank int
	// PollInterval bounds how long a follower can miss a filesystem event
	// before rechecking. Defaults to one second.
	PollInterval time.Duration
	// Timeout caps the follower wait. Zero or negative means wait until the
	// context is cancelled; a crashed leader then blocks followers forever,
	// which is the documented legacy behavior.
	Timeout time.Duration
}

type Barrier struct {
	cfg Config
}

func New(cfg Config) (*Barrier, error) {
	if cfg.Dir == "" {
		return nil, ErrMissingDir
	}
	if cfg.JobID == "" {
		return nil, ErrMissingJob
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Barrier{cfg: cfg}, nil
}

func (b *Barrier) IsLeader() bool {
	return b.cfg.LocalRank == 0
}

// MarkerPath is the well-known path derived from the job ID.
func (b *Barrier) MarkerPath() string {
	return filepath.Join(b.cfg.Dir, fmt.Sprintf("install-%s.done", b.cfg.JobID))
}

// Run executes the barrier. The leader runs setup and then signals
// completion; followers block in Wait. A leader observing an existing marker
// returns immediately without re-running setup, so re-runs with the same job
// ID are idempotent.
func (b *Barrier) Run(ctx context.Context, setup func(context.Context) error) error {
	if !b.IsLeader() {
		return b.Wait(ctx)
	}

	if b.markerExists() {
		log.WithField("marker", b.MarkerPath()).Info("install marker already present, skipping setup")
		return nil
	}

	if setup != nil {
		if err := setup(ctx); err != nil {
			return fmt.Errorf("run setup: %w", err)
		}
	}

	return b.signal()
}

// Wait blocks until the marker exists, the context is cancelled, or the
// configured timeout elapses. The marker directory is watched with fsnotify;
// a poll ticker backstops events that fire before the watch is registered.
func (b *Barrier) Wait(ctx context.Context) error {
	if b.markerExists() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() { _ = watcher.Close() }()
		if werr := watcher.Add(b.cfg.Dir); werr != nil {
			log.WithError(werr).Warn("watch barrier directory failed, falling back to polling")
			watcher = nil
		}
	} else {
		log.WithError(err).Warn("create fsnotify watcher failed, falling back to polling")
		watcher = nil
	}

	// The marker may have appeared between the existence check and the watch
	// registration.
	if b.markerExists() {
		return nil
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if b.cfg.Timeout > 0 {
		timer := time.NewTimer(b.cfg.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	events := make(<-chan fsnotify.Event)
	watchErrs := make(<-chan error)
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for install marker: %w", ctx.Err())
		case <-deadline:
			return ErrTimeout
		case ev := <-events:
			if ev.Name == b.MarkerPath() && b.markerExists() {
				return nil
			}
		case werr := <-watchErrs:
			log.WithError(werr).Warn("barrier watch error")
		case <-ticker.C:
			if b.markerExists() {
				return nil
			}
		}
	}
}

// Remove deletes the marker so a later run with a colliding job ID does not
// falsely proceed.
func (b *Barrier) Remove() error {
	if err := os.Remove(b.MarkerPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove install marker: %w", err)
	}
	return nil
}

func (b *Barrier) markerExists() bool {
	_, err := os.Stat(b.MarkerPath())
	return err == nil
}

// signal creates the marker atomically: a rename is visible to other
// processes all at once, so no follower can observe a half-written marker.
func (b *Barrier) signal() error {
	tmp, err := os.CreateTemp(b.cfg.Dir, ".install-*")
	if err != nil {
		return fmt.Errorf("create marker temp file: %w", err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close marker temp file: %w", err)
	}
	if err := os.Rename(name, b.MarkerPath()); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("publish install marker: %w", err)
	}
	log.WithField("marker", b.MarkerPath()).Info("install marker published")
	return nil
}
