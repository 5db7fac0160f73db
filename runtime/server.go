// Package runtime wires the transport, the ingestion worker and the sinks
// into a server with an explicit start/stop lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"logserver/contract"
	"logserver/domain"
	apperrors "logserver/errors"
	"logserver/observability"
	"logserver/runtime/workers"

	"github.com/samber/lo"
)

const (
	DefaultSubscriptionBuffer = 256
	DefaultDrainTimeout       = 3 * time.Second
)

type serverState int

const (
	serverIdle serverState = iota
	serverRunning
	serverStopped
)

type ServerOptions struct {
	Transport          contract.Transport
	Sinks              []contract.Sink
	SubscriptionBuffer int
	RestartInterval    time.Duration

	// Filter is applied before fan-out; nil lets every event through.
	Filter *domain.Filter

	// DrainTimeout bounds closing every sink at Stop.
	DrainTimeout time.Duration

	// Workers run next to the ingestion loop for the server's lifetime.
	Workers []contract.Worker
}

// Server owns the subscription and the sinks. One server runs once: after
// Stop, a new one has to be built.
type Server struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	opts       ServerOptions

	mu         sync.Mutex
	state      serverState
	sinks      []contract.Sink
	sub        contract.Subscription
	reopen     chan struct{}
	supervisor *workers.Supervisor
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewServer(log *slog.Logger, monitoring *observability.MonitoringManager, opts ServerOptions) *Server {
	if opts.SubscriptionBuffer <= 0 {
		opts.SubscriptionBuffer = DefaultSubscriptionBuffer
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Filter == nil {
		opts.Filter = &domain.AcceptAll
	}
	return &Server{
		log:        log,
		monitoring: monitoring,
		opts:       opts,
		reopen:     make(chan struct{}, 1),
	}
}

// Start subscribes to the transport, opens the sinks in their fixed order
// and starts the ingestion loop. Sinks failing to open are left out. When
// none is left, or the transport refuses the subscription, the server does
// not run and every sink is closed.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case serverRunning:
		return nil
	case serverStopped:
		return apperrors.ErrServerStopped
	}

	if s.opts.Transport == nil {
		s.closeSinks(ctx, s.opts.Sinks)
		return fmt.Errorf("%w: no transport configured", apperrors.ErrTransportUnavailable)
	}
	sub, err := s.opts.Transport.Subscribe(s.opts.SubscriptionBuffer)
	if err != nil {
		s.closeSinks(ctx, s.opts.Sinks)
		if errors.Is(err, apperrors.ErrTransportUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", apperrors.ErrTransportUnavailable, err)
	}

	opened := make([]contract.Sink, 0, len(s.opts.Sinks))
	for _, sink := range s.opts.Sinks {
		if err := sink.Open(ctx); err != nil {
			s.log.Warn("Sink unavailable, leaving it out", "sink", sink.Name(), "error", err)
			_ = sink.Close(ctx)
			continue
		}
		opened = append(opened, sink)
	}
	if len(opened) == 0 {
		_ = sub.Close()
		return apperrors.ErrNoSinks
	}

	s.sub = sub
	s.sinks = opened
	ingestion := workers.NewIngestionWorker(s.log, sub.Frames(), s.reopen, opened, *s.opts.Filter, s.monitoring)
	s.supervisor = workers.NewSupervisor(s.log, s.opts.RestartInterval)
	s.supervisor.Add(ingestion).Add(s.opts.Workers...)

	// the server outlives the context that started it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.supervisor.Run(runCtx)
	}()

	s.state = serverRunning
	s.log.Info("Log server started", "sinks", s.sinkNames())
	return nil
}

// Stop ends ingestion, lets every sink drain within the drain deadline and
// releases the subscription. Calling it again is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != serverRunning {
		s.state = serverStopped
		return nil
	}
	s.state = serverStopped

	s.cancel()
	s.supervisor.Stop()
	// sinks are only touched by the ingestion loop until it has returned;
	// Handle is bounded, so this wait is too
	<-s.done

	drainCtx, cancel := context.WithTimeout(ctx, s.opts.DrainTimeout)
	defer cancel()
	err := s.closeSinks(drainCtx, s.sinks)

	if subErr := s.sub.Close(); subErr != nil {
		err = errors.Join(err, fmt.Errorf("releasing subscription: %w", subErr))
	}
	s.log.Info("Log server stopped")
	return err
}

func (s *Server) closeSinks(ctx context.Context, sinks []contract.Sink) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(ctx); err != nil {
			s.log.Warn("Sink close failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("closing sink %s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Reopen asks the ingestion loop to reopen every sink before the next event.
// Requests made while one is pending are merged.
func (s *Server) Reopen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != serverRunning {
		return apperrors.ErrServerNotRunning
	}
	select {
	case s.reopen <- struct{}{}:
	default:
	}
	return nil
}

// StopDatabaseAccess stops every sink from writing to its primary store.
// Other sinks keep delivering.
func (s *Server) StopDatabaseAccess() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != serverRunning {
		return apperrors.ErrServerNotRunning
	}
	for _, sink := range s.sinks {
		sink.StopAcceptingPrimaryStore()
	}
	return nil
}

// SinkNames lists the running sinks in dispatch order.
func (s *Server) SinkNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinkNames()
}

func (s *Server) sinkNames() []string {
	return lo.Map(s.sinks, func(sink contract.Sink, _ int) string { return sink.Name() })
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == serverRunning
}
