package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/metrics"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
)

// sampleJob is a unit of work for the worker pool.
type sampleJob struct {
	index  int
	window Window
}

// sampleResult is the output of sampling a single window.
type sampleResult struct {
	index   int
	samples []passes.Sample
	err     error
}

// WorkerPool manages a fixed number of goroutines that sample windows in
// parallel with SGP4.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// SampleWindows samples every window at the given step and returns the
// samples per window, in window order. The first failure cancels the rest.
func (wp *WorkerPool) SampleWindows(ctx context.Context, prop LookAngler, obs Observer, windows []Window, step time.Duration) ([][]passes.Sample, error) {
	if len(windows) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan sampleJob, wp.workers*2)
	results := make(chan sampleResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				samples, err := sampleWindow(ctx, prop, obs, job.window, step)
				select {
				case results <- sampleResult{index: job.index, samples: samples, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, w := range windows {
			select {
			case jobs <- sampleJob{index: i, window: w}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]passes.Sample, len(windows))
	var firstErr error
	var total int
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
				cancel()
			}
			continue
		}
		out[result.index] = result.samples
		total += len(result.samples)
	}

	if firstErr != nil {
		wp.logger.Warn("window sampling failed", "windows", len(windows), "error", firstErr)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics.AddSamples(total)
	return out, nil
}

// sampleWindow samples [w.Start, w.End] inclusive at step.
func sampleWindow(ctx context.Context, prop LookAngler, obs Observer, w Window, step time.Duration) ([]passes.Sample, error) {
	if step <= 0 {
		return nil, fmt.Errorf("sampling step %s must be positive", step)
	}
	n := int(w.End.Sub(w.Start)/step) + 1
	if n < 1 {
		return nil, nil
	}

	samples := make([]passes.Sample, 0, n)
	for i := 0; i < n; i++ {
		if i%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s, err := prop.LookAt(obs, w.Start.Add(time.Duration(i)*step))
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}
