package workers

import (
	"context"
	"fmt"
	"log/slog"

	"logserver/codec"
	"logserver/contract"
	"logserver/domain"
	"logserver/errors"
	"logserver/observability"
)

var _ contract.Worker = (*IngestionWorker)(nil)

// IngestionWorker is the single loop reading frames from the transport and
// fanning every decoded event out to the sinks in registration order.
//
// Reopen requests are served between two events, so no sink is reopened
// while it is handling one.
type IngestionWorker struct {
	log        *slog.Logger
	frames     <-chan []byte
	reopen     <-chan struct{}
	sinks      []contract.Sink
	filter     domain.Filter
	monitoring *observability.MonitoringManager
}

func NewIngestionWorker(
	log *slog.Logger,
	frames <-chan []byte,
	reopen <-chan struct{},
	sinks []contract.Sink,
	filter domain.Filter,
	monitoring *observability.MonitoringManager,
) *IngestionWorker {
	return &IngestionWorker{
		log:        log,
		frames:     frames,
		reopen:     reopen,
		sinks:      sinks,
		filter:     filter,
		monitoring: monitoring,
	}
}

func (w *IngestionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping ingestion")
			return nil
		case <-w.reopen:
			w.ReopenSinks()
		case frame := <-w.frames:
			// a reopen requested before this frame arrived goes first
			select {
			case <-w.reopen:
				w.ReopenSinks()
			default:
			}
			w.Dispatch(ctx, frame)
		}
	}
}

// Dispatch decodes one frame and delivers it. A frame that cannot be decoded
// is counted and dropped.
func (w *IngestionWorker) Dispatch(ctx context.Context, frame []byte) {
	w.monitoring.IncrFramesReceived()
	e, err := codec.Decode(frame)
	if err != nil {
		w.monitoring.IncrFramesMalformed()
		w.log.Debug("Dropping malformed frame", "size", len(frame), "error", err)
		return
	}
	if !w.filter.Allows(e) {
		w.monitoring.IncrEventsFiltered()
		return
	}
	w.Fanout(ctx, e)
}

// Fanout One sink after the other, for each event
func (w *IngestionWorker) Fanout(ctx context.Context, e domain.Event) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(w.sinks))
	for _, sink := range w.sinks {
		outcome := w.handle(ctx, sink, e)
		w.monitoring.RecordOutcome(sink.Name(), outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (w *IngestionWorker) handle(ctx context.Context, sink contract.Sink, e domain.Event) (outcome domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Sink panicked", "sink", sink.Name(), "panic", r)
			outcome = domain.Failed(fmt.Errorf("%w: %v", errors.ErrSinkPanic, r))
		}
	}()
	return sink.Handle(ctx, e)
}

// ReopenSinks asks every sink to reopen its resources. Failures are logged
// and the sink keeps running in whatever state Reopen left it.
func (w *IngestionWorker) ReopenSinks() {
	for _, sink := range w.sinks {
		if err := w.reopenSink(sink); err != nil {
			w.log.Warn("Sink reopen failed", "sink", sink.Name(), "error", err)
		}
	}
	w.log.Info("Sinks reopened", "count", len(w.sinks))
}

func (w *IngestionWorker) reopenSink(sink contract.Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrSinkPanic, r)
		}
	}()
	return sink.Reopen()
}
