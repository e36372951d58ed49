package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic maintenance task. Run returns how many rows it
// affected so quiet ticks can be logged at debug level only.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Sweeper drives a set of jobs on independent tickers for the process
// lifetime. A failing tick is logged and the schedule continues; only
// context cancellation stops a job.
type Sweeper struct {
	jobs   []Job
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(logger *slog.Logger, jobs ...Job) *Sweeper {
	return &Sweeper{jobs: jobs, logger: logger}
}

// Start launches one goroutine per job and returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Wait blocks until every job goroutine has observed cancellation.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("sweep job started", "job", job.Name, "interval", job.Interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep job stopped", "job", job.Name)
			return
		case <-ticker.C:
			n, err := job.Run(ctx)
			if err != nil {
				// Self-healing: log and wait for the next tick.
				s.logger.Error("sweep failed", "job", job.Name, "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("sweep completed", "job", job.Name, "affected", n)
			} else {
				s.logger.Debug("sweep found nothing", "job", job.Name)
			}
		}
	}
}
