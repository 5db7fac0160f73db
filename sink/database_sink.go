package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"logserver/contract"
	"logserver/domain"
	apperrors "logserver/errors"
	"logserver/observability"
)

var _ contract.Sink = (*DatabaseSink)(nil)

// DefaultMinDisabledTime is how long the database sink stays disabled after
// a failed write or probe.
const DefaultMinDisabledTime = 5 * time.Second

type DatabaseState int32

const (
	StateUninitialized DatabaseState = iota
	StateProbing
	StateReady
	StateDisabled
	StateClosed
)

func (s DatabaseState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateDisabled:
		return "disabled"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type DatabaseConfig struct {
	Name                string
	Capacity            int
	MinDisabledTime     time.Duration
	WriteTimeout        time.Duration
	DrainTimeout        time.Duration
	ErrorReportInterval time.Duration
}

// DatabaseSink persists events through an EventStore without ever writing on
// the ingestion path. Handle only enqueues; a dedicated worker drains the
// queue, and a failed write opens a circuit breaker for MinDisabledTime
// during which queued and incoming events are discarded.
type DatabaseSink struct {
	name                string
	store               contract.EventStore
	queue               *WriteQueue
	log                 *slog.Logger
	monitoring          *observability.MonitoringManager
	minDisabled         time.Duration
	writeTimeout        time.Duration
	drainTimeout        time.Duration
	errorReportInterval time.Duration
	now                 func() time.Time

	state          atomic.Int32
	primaryStopped atomic.Bool
	writeNanos     atomic.Int64

	// lastReport is only touched by the worker goroutine.
	lastReport time.Time

	started   bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewDatabaseSink(store contract.EventStore, log *slog.Logger,
	monitoring *observability.MonitoringManager, cfg DatabaseConfig) *DatabaseSink {
	if cfg.Name == "" {
		cfg.Name = "database"
	}
	if cfg.MinDisabledTime <= 0 {
		cfg.MinDisabledTime = DefaultMinDisabledTime
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 3 * time.Second
	}
	if cfg.ErrorReportInterval <= 0 {
		cfg.ErrorReportInterval = cfg.MinDisabledTime
	}
	return &DatabaseSink{
		name:                cfg.Name,
		store:               store,
		queue:               NewWriteQueue(cfg.Capacity, monitoring),
		log:                 log,
		monitoring:          monitoring,
		minDisabled:         cfg.MinDisabledTime,
		writeTimeout:        cfg.WriteTimeout,
		drainTimeout:        cfg.DrainTimeout,
		errorReportInterval: cfg.ErrorReportInterval,
		now:                 time.Now,
		done:                make(chan struct{}),
	}
}

func (d *DatabaseSink) Name() string { return d.name }

func (d *DatabaseSink) State() DatabaseState {
	return DatabaseState(d.state.Load())
}

func (d *DatabaseSink) setState(s DatabaseState) {
	d.state.Store(int32(s))
}

// Queue exposes the write queue for diagnostics.
func (d *DatabaseSink) Queue() *WriteQueue { return d.queue }

func (d *DatabaseSink) Store() contract.EventStore { return d.store }

// WriteTime is the cumulative time the worker spent in write attempts.
func (d *DatabaseSink) WriteTime() time.Duration {
	return time.Duration(d.writeNanos.Load())
}

// Open starts the worker. The first thing the worker does is probe the store.
// The worker is not tied to ctx: it lives until Close.
func (d *DatabaseSink) Open(_ context.Context) error {
	if d.State() != StateUninitialized {
		return nil
	}
	d.setState(StateProbing)
	d.started = true
	go d.run()
	return nil
}

// Handle never touches the network. While probing or ready the event is
// queued; in any other state it is dropped.
func (d *DatabaseSink) Handle(_ context.Context, e domain.Event) domain.Outcome {
	switch d.State() {
	case StateProbing, StateReady:
		return d.queue.Enqueue(e, d.now())
	case StateDisabled:
		d.monitoring.IncrQueueRejected()
		return domain.Dropped(apperrors.ErrSinkDisabled)
	default:
		d.monitoring.IncrQueueRejected()
		return domain.Dropped(apperrors.ErrSinkClosed)
	}
}

// Reopen is a no-op: there is nothing to rotate.
func (d *DatabaseSink) Reopen() error { return nil }

// StopAcceptingPrimaryStore permanently stops writes, used when the
// surrounding process tears down its database access before shutdown.
// Queued events are discarded, not drained.
func (d *DatabaseSink) StopAcceptingPrimaryStore() {
	if d.primaryStopped.Swap(true) {
		return
	}
	d.queue.Abort()
	d.log.Info("Database logging stopped", "sink", d.name)
}

// Close aborts the queue, waits for the worker to drain within the drain
// deadline, then releases the store. It returns ErrDrainTimeout when the
// worker is still stuck in the store after the deadline; the store is left
// open in that case.
func (d *DatabaseSink) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.queue.Abort()
		if d.started {
			grace := time.NewTimer(d.drainTimeout + d.writeTimeout)
			defer grace.Stop()
			select {
			case <-d.done:
			case <-grace.C:
				d.closeErr = apperrors.ErrDrainTimeout
			case <-ctx.Done():
				d.closeErr = apperrors.ErrDrainTimeout
			}
		}
		d.setState(StateClosed)
		if d.closeErr != nil {
			d.log.Warn("Database worker did not finish before the drain deadline", "sink", d.name)
			return
		}
		d.closeErr = d.store.Close()
	})
	return d.closeErr
}

func (d *DatabaseSink) run() {
	defer close(d.done)

	if err := d.probe(); err != nil {
		d.disable(err)
		if !d.coolDown() {
			d.queue.Discard()
			return
		}
	} else {
		d.setState(StateReady)
		d.log.Debug("Database logging ready", "sink", d.name)
	}

	for {
		select {
		case <-d.queue.Wake():
			d.writePending()
		case <-d.queue.Done():
			d.drain()
			return
		}
	}
}

// writePending writes queued events in FIFO order until the queue is empty.
// A failure disables the sink, discards the rest and waits out the cool-down.
func (d *DatabaseSink) writePending() {
	for !d.queue.IsAborted() {
		e, ok := d.queue.Pop()
		if !ok {
			return
		}
		if err := d.write(context.Background(), e); err != nil {
			d.disable(err)
			d.coolDown()
			return
		}
	}
}

// coolDown waits until disabledUntil, then probes once. A failed probe extends
// the disablement by the same interval. It returns false when the queue was
// aborted while waiting.
func (d *DatabaseSink) coolDown() bool {
	for {
		wait := d.queue.DisabledUntil().Sub(d.now())
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-d.queue.Done():
				timer.Stop()
				return false
			}
		}
		if d.queue.IsAborted() {
			return false
		}
		if err := d.probe(); err != nil {
			d.disable(err)
			continue
		}
		d.setState(StateReady)
		d.log.Info("Database logging re-enabled", "sink", d.name)
		return true
	}
}

// drain makes one time-boxed pass over what is left at shutdown. Nothing is
// written when the sink is disabled or the primary store was withdrawn.
func (d *DatabaseSink) drain() {
	if d.primaryStopped.Load() || d.State() != StateReady {
		d.queue.Discard()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	written := 0
	for ctx.Err() == nil {
		e, ok := d.queue.Pop()
		if !ok {
			break
		}
		if err := d.write(ctx, e); err != nil {
			break
		}
		written++
	}
	if n := d.queue.Discard(); n > 0 {
		d.log.Warn("Database drain incomplete", "sink", d.name, "written", written, "discarded", n)
	}
}

func (d *DatabaseSink) write(parent context.Context, e domain.Event) error {
	ctx, cancel := context.WithTimeout(parent, d.writeTimeout)
	defer cancel()

	start := time.Now()
	err := d.store.Insert(ctx, e)
	elapsed := time.Since(start)

	d.writeNanos.Add(int64(elapsed))
	d.monitoring.ObserveWrite(elapsed, err)
	return err
}

func (d *DatabaseSink) probe() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()
	return d.store.Probe(ctx)
}

// disable opens the circuit breaker. At most one error is reported per
// errorReportInterval; the rest go to debug.
func (d *DatabaseSink) disable(err error) {
	now := d.now()
	until := now.Add(d.minDisabled)
	previous := d.State()
	d.setState(StateDisabled)
	discarded := d.queue.Disable(until)
	d.monitoring.IncrDisablements()

	if previous != StateDisabled || now.Sub(d.lastReport) >= d.errorReportInterval {
		d.lastReport = now
		d.log.Error("Database logging disabled",
			"sink", d.name, "until", until, "discarded", discarded, "error", err)
		return
	}
	d.log.Debug("Database still unavailable", "sink", d.name, "until", until, "error", err)
}
