package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
)

// Worker is one unit of background work
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one iteration of work
	Run(ctx context.Context) error
}

// PeriodicWorker runs a Worker on a fixed interval until its context is cancelled
type PeriodicWorker struct {
	worker   Worker
	interval time.Duration
	wg       sync.WaitGroup
	name     string
}

// NewPeriodicWorker creates new periodic worker
func NewPeriodicWorker(w Worker, interval time.Duration) *PeriodicWorker {
	return &PeriodicWorker{
		worker:   w,
		interval: interval,
		name:     w.Name(),
	}
}

// Start launches the loop in a goroutine
func (pw *PeriodicWorker) Start(ctx context.Context) {
	pw.wg.Add(1)
	go pw.loop(ctx)
}

// Stop waits for the loop to exit. Returns false on timeout.
func (pw *PeriodicWorker) Stop(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		pw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker stopped", zap.String("worker", pw.name))
		return true
	case <-time.After(timeout):
		logger.Warn("worker stop timeout", zap.String("worker", pw.name))
		return false
	}
}

func (pw *PeriodicWorker) loop(ctx context.Context) {
	defer pw.wg.Done()

	logger.Info("worker started",
		zap.String("worker", pw.name),
		zap.Duration("interval", pw.interval),
	)

	// first iteration runs immediately
	pw.runOnce(ctx)

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pw.runOnce(ctx)
		}
	}
}

func (pw *PeriodicWorker) runOnce(ctx context.Context) {
	if err := pw.worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker iteration failed",
			zap.String("worker", pw.name),
			zap.Error(err),
		)
	}
}

// Group manages several periodic workers sharing one lifetime
type Group struct {
	ctx     context.Context
	cancel  context.CancelFunc
	workers []*PeriodicWorker
	mu      sync.Mutex
}

// NewGroup creates new worker group bound to ctx
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a worker; it starts on Start
func (g *Group) Add(w Worker, interval time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.workers = append(g.workers, NewPeriodicWorker(w, interval))
}

// Start starts all registered workers
func (g *Group) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, w := range g.workers {
		w.Start(g.ctx)
	}

	logger.Info("worker group started", zap.Int("workers", len(g.workers)))
}

// Stop cancels the group and waits for every worker
func (g *Group) Stop(timeout time.Duration) {
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, w := range g.workers {
		w.Stop(timeout)
	}

	logger.Info("worker group stopped")
}
