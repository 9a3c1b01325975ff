package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOnChange_FiresOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.inkp")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(FileVersion(path), Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int64
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})

	// Let the initial version seed before mutating.
	waitFor(t, func() bool { return w.Stats().Checks > 0 })

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestOnChange_SuppressionAbsorbsOwnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.inkp")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(FileVersion(path), Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int64
	go w.OnChange(ctx, func() error {
		fired.Add(1)
		return nil
	})
	waitFor(t, func() bool { return w.Stats().Checks > 0 })

	// Bracketed write: suppression raised for its duration.
	w.SetSuppressed(true)
	if err := os.WriteFile(path, []byte("own write"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return w.Stats().Suppressed > 0 })
	w.SetSuppressed(false)

	// Give the poller several cycles to prove the action never fires.
	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("suppressed write fired the action %d time(s)", fired.Load())
	}

	// An external write afterwards must still flow through.
	if err := os.WriteFile(path, []byte("external"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestOnChange_FailedActionRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.inkp")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(FileVersion(path), Options{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return os.ErrDeadlineExceeded
		}
		return nil
	})
	waitFor(t, func() bool { return w.Stats().Checks > 0 })

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	// First attempt fails, the version is not advanced, so it retries.
	waitFor(t, func() bool { return w.Stats().Reloads == 1 })
	if calls.Load() < 2 {
		t.Fatalf("expected a retry after failure, calls=%d", calls.Load())
	}
}

func TestResync_AbsorbsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.inkp")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(FileVersion(path), Options{Interval: time.Hour})
	w.Resync(context.Background())
	before := w.Version()

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Resync(context.Background())
	if w.Version() == before {
		t.Fatal("resync did not absorb new version")
	}
}

func TestFileVersion_MissingFile(t *testing.T) {
	det := FileVersion(filepath.Join(t.TempDir(), "absent.inkp"))
	v, err := det(context.Background())
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if v != 0 {
		t.Fatalf("missing file should detect as 0, got %d", v)
	}
}
