package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"logserver/contract"
	"logserver/errors"
)

const DefaultRestartInterval = 200 * time.Millisecond

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor Own a context and a cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers automatically
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
type Supervisor struct {
	mu              sync.Mutex
	cancel          context.CancelFunc
	stopped         bool
	wg              sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{log: log, restartInterval: restartInterval}
}

// Run blocks until every worker has returned.
// If the parent cancels, we cancel. If Stop is called, only our children cancel.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	workers := s.workers
	s.mu.Unlock()

	for _, worker := range workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision.
// A panic is recovered and the worker restarted after the restart interval.
// A worker returning nil is finished and never restarted.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Debug("Stopping worker", "name", workerName)
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Debug("Worker finished", "name", workerName)
				return
			}

			if ctx.Err() != nil {
				s.log.Debug("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop cancels every worker; Run returns once they have all finished.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}
