package ingest

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"exalted/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Trigger is a single-slot wake-up channel: while one trigger is pending,
// further ones are dropped.
type Trigger struct {
	ch      chan string
	dropped atomic.Uint64
}

func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan string, 1)}
}

// Fire queues a wake-up unless one is already pending. It reports whether
// the trigger was queued.
func (t *Trigger) Fire(reason string) bool {
	select {
	case t.ch <- reason:
		return true
	default:
		t.dropped.Add(1)
		return false
	}
}

func (t *Trigger) C() <-chan string { return t.ch }

// Dropped counts coalesced triggers.
func (t *Trigger) Dropped() uint64 { return t.dropped.Load() }

// Firer is anything that accepts wake-ups; *Trigger is the usual one.
type Firer interface {
	Fire(reason string) bool
}

// Poll fires the trigger every interval until ctx is done.
func Poll(ctx context.Context, interval time.Duration, trigger Firer) error {
	if interval <= 0 {
		return nil
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			trigger.Fire("poll")
		}
	}
}

// Watch fires the trigger on writes to path. The parent directory is watched
// so that files replaced by rename are still seen.
func Watch(ctx context.Context, path string, trigger Firer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Infof("ingest: watching %s", target)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
				trigger.Fire("fsnotify")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("ingest: watcher error: %v", err)
		}
	}
}
