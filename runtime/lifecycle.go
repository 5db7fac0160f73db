package runtime

import (
	"context"
	"log/slog"
	"sync"

	apperrors "logserver/errors"
)

// ServerFactory builds a fresh server with fresh sinks for every start.
type ServerFactory func(ctx context.Context) (*Server, error)

// Lifecycle is the process-level handle on the log server. The entry point
// creates one and hands it to whatever needs to start, stop or reconfigure
// logging; there is no global instance.
type Lifecycle struct {
	mu      sync.Mutex
	log     *slog.Logger
	factory ServerFactory
	server  *Server
}

func NewLifecycle(log *slog.Logger, factory ServerFactory) *Lifecycle {
	return &Lifecycle{log: log, factory: factory}
}

// Start is a no-op when a server is already running.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.server != nil {
		return nil
	}
	srv, err := l.factory(ctx)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	l.server = srv
	return nil
}

// Stop is a no-op when nothing runs.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.server == nil {
		return nil
	}
	err := l.server.Stop(ctx)
	l.server = nil
	return err
}

// Reopen is the rotation signal: file sinks reopen their paths.
func (l *Lifecycle) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.server == nil {
		return apperrors.ErrServerNotRunning
	}
	return l.server.Reopen()
}

func (l *Lifecycle) StopDatabaseAccess() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.server == nil {
		return apperrors.ErrServerNotRunning
	}
	l.log.Info("Stopping database logging")
	return l.server.StopDatabaseAccess()
}

func (l *Lifecycle) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.server != nil
}

// SinkNames is empty when nothing runs.
func (l *Lifecycle) SinkNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.server == nil {
		return nil
	}
	return l.server.SinkNames()
}
