// Package watch provides a generic "poll, detect change, debounce, reload"
// loop. It standardises the reactive pattern used for backing project files
// so every consumer gets consistent intervals, debounce windows, and
// observability for free.
//
// Typical usage:
//
//	w := watch.New(watch.FileVersion(path), watch.Options{Interval: 200 * time.Millisecond})
//	go w.OnChange(ctx, func() error { return session.Reload() })
package watch

import (
	"context"
	"hash/crc64"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token. Two calls that return different
// values mean "something changed". For files the token is derived from the
// content; for anything else any monotonic or content-addressed int64 works.
type ChangeDetector func(ctx context.Context) (int64, error)

var crcTable = crc64.MakeTable(crc64.ECMA)

// FileVersion returns a detector producing a content checksum of the file.
// A missing file detects as version 0, so deletion is a change too.
func FileVersion(path string) ChangeDetector {
	return func(ctx context.Context) (int64, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return 0, nil
			}
			return 0, err
		}
		return int64(crc64.Checksum(data, crcTable)), nil
	}
}

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before the
	// action fires. If more changes arrive during the window the timer
	// resets. 0 means fire immediately. Default: 0.
	Debounce time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a detector for changes and runs an action when one is
// detected. It is safe for concurrent use.
type Watcher struct {
	detect ChangeDetector
	opts   Options

	// version is the last observed version token.
	version atomic.Int64

	// Counters for observability (exported via Stats).
	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64

	// suppressed counts polls absorbed because Suppress was held.
	suppressed atomic.Int64
	suppress   atomic.Bool
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Reloads         int64 `json:"reloads"`
	Suppressed      int64 `json:"suppressed"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(detect ChangeDetector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
		Suppressed:      w.suppressed.Load(),
	}
}

// Version returns the last observed version token.
func (w *Watcher) Version() int64 { return w.version.Load() }

// SetSuppressed raises or lowers suppression. While suppressed the watcher
// still polls and advances its version token, but never fires the action:
// a write the owner performed itself must not be re-ingested as external.
func (w *Watcher) SetSuppressed(v bool) { w.suppress.Store(v) }

// Suppressed reports whether suppression is currently raised.
func (w *Watcher) Suppressed() bool { return w.suppress.Load() }

// Resync re-reads the current version without firing the action. Owners call
// it after their own write so the write's token is absorbed even when no
// poll ran while suppression was up.
func (w *Watcher) Resync(ctx context.Context) {
	if v, err := w.detect(ctx); err == nil {
		w.version.Store(v)
	}
}

// OnChange blocks until ctx is cancelled, polling at opts.Interval. When the
// detector reports a version change and the debounce window passes without
// further changes, action is called.
//
// If action returns an error the version is NOT advanced — the action will
// be retried on the next poll cycle.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	// Seed initial version.
	if v, err := w.detect(ctx); err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pendingVersion := int64(0)
	havePending := false

	log.Debug("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Debug("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if w.suppress.Load() {
				// The owner's own write: absorb the token, never fire.
				w.suppressed.Add(1)
				w.version.Store(cur)
				continue
			}
			if cur != w.version.Load() && (!havePending || cur != pendingVersion) {
				w.changes.Add(1)
				pendingVersion = cur
				havePending = true

				if w.opts.Debounce <= 0 {
					w.fire(log, action, pendingVersion)
					havePending = false
				} else {
					if debounceTimer != nil {
						debounceTimer.Stop()
					}
					debounceTimer = time.NewTimer(w.opts.Debounce)
					debounceCh = debounceTimer.C
					log.Debug("watch: change detected, debouncing", "pending_version", cur)
				}
			}

		case <-debounceCh:
			debounceCh = nil
			if havePending {
				w.fire(log, action, pendingVersion)
				havePending = false
			}
		}
	}
}

func (w *Watcher) fire(log *slog.Logger, action func() error, version int64) {
	if err := action(); err != nil {
		w.errors.Add(1)
		log.Warn("watch: reload failed", "error", err)
		return
	}
	w.reloads.Add(1)
	w.version.Store(version)
}
