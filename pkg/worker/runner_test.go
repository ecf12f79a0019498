package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingWorker struct {
	runs atomic.Int32
	err  error
}

func (w *countingWorker) Name() string { return "counting" }

func (w *countingWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	return w.err
}

func TestPeriodicWorkerRunsImmediately(t *testing.T) {
	w := &countingWorker{err: errors.New("boom")}

	ctx, cancel := context.WithCancel(context.Background())
	pw := NewPeriodicWorker(w, time.Hour)
	pw.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for w.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if !pw.Stop(time.Second) {
		t.Fatal("worker did not stop")
	}
	if w.runs.Load() != 1 {
		t.Errorf("expected exactly one run, got %d", w.runs.Load())
	}
}

func TestGroupTicks(t *testing.T) {
	w := &countingWorker{}

	g := NewGroup(context.Background())
	g.Add(w, 10*time.Millisecond)
	g.Start()

	deadline := time.Now().Add(time.Second)
	for w.runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	g.Stop(time.Second)

	if w.runs.Load() < 3 {
		t.Errorf("expected at least 3 runs, got %d", w.runs.Load())
	}
}
