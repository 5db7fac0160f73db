package observability

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"logserver/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// MonitoringStats is the snapshot served on /stats and logged by the reporter.
type MonitoringStats struct {
	Uptime          string `json:"uptime"`
	FramesReceived  uint64 `json:"frames_received"`
	FramesMalformed uint64 `json:"frames_malformed"`
	EventsFiltered  uint64 `json:"events_filtered"`
	Delivered       uint64 `json:"delivered"`
	Dropped         uint64 `json:"dropped"`
	Failed          uint64 `json:"failed"`

	QueueDepth     int64  `json:"queue_depth"`
	QueueCapacity  int64  `json:"queue_capacity"`
	QueueRejected  uint64 `json:"queue_rejected"`
	QueueDiscarded uint64 `json:"queue_discarded"`
	DBWrites       uint64 `json:"db_writes"`
	DBWriteErrors  uint64 `json:"db_write_errors"`
	DBWriteTime    string `json:"db_write_time"`
	DBDisablements uint64 `json:"db_disablements"`

	AllocMemMb uint64 `json:"alloc_mem_mb"`
	NumGC      uint32 `json:"num_gc"`
}

// MonitoringManager counts what happens in the pipeline.
// Every counter is atomic; the prometheus collectors read the same values.
type MonitoringManager struct {
	log       *slog.Logger
	startedAt time.Time
	registry  *prometheus.Registry

	framesReceived  atomic.Uint64
	framesMalformed atomic.Uint64
	eventsFiltered  atomic.Uint64
	delivered       atomic.Uint64
	dropped         atomic.Uint64
	failed          atomic.Uint64

	queueDepth     atomic.Int64
	queueCapacity  atomic.Int64
	queueRejected  atomic.Uint64
	queueDiscarded atomic.Uint64
	dbWrites       atomic.Uint64
	dbWriteErrors  atomic.Uint64
	dbWriteNanos   atomic.Int64
	dbDisablements atomic.Uint64

	sinkOutcomes  *prometheus.CounterVec
	writeDuration prometheus.Histogram
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	mm := &MonitoringManager{
		log:       log,
		startedAt: time.Now(),
		registry:  prometheus.NewRegistry(),
		sinkOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logserver_sink_outcomes_total",
				Help: "Outcome of every sink delivery attempt",
			},
			[]string{"sink", "outcome"},
		),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logserver_db_write_duration_seconds",
			Help:    "Duration of database write attempts",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	mm.registry.MustRegister(
		mm.sinkOutcomes,
		mm.writeDuration,
		counterFunc("logserver_frames_received_total", "Frames read from the transport", &mm.framesReceived),
		counterFunc("logserver_frames_malformed_total", "Frames dropped because they could not be decoded", &mm.framesMalformed),
		counterFunc("logserver_events_filtered_total", "Events skipped by the severity/facility filter", &mm.eventsFiltered),
		counterFunc("logserver_queue_rejected_total", "Database enqueues refused (full, aborted or disabled)", &mm.queueRejected),
		counterFunc("logserver_queue_discarded_total", "Queued database writes discarded by the circuit breaker or shutdown", &mm.queueDiscarded),
		counterFunc("logserver_db_write_errors_total", "Failed database writes", &mm.dbWriteErrors),
		counterFunc("logserver_db_disablements_total", "Times the database sink entered the disabled state", &mm.dbDisablements),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "logserver_queue_depth",
			Help: "Events waiting in the database write queue",
		}, func() float64 { return float64(mm.queueDepth.Load()) }),
	)
	return mm
}

func counterFunc(name, help string, v *atomic.Uint64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) })
}

// Registry exposes the collectors for the /metrics handler.
func (mm *MonitoringManager) Registry() *prometheus.Registry {
	return mm.registry
}

func (mm *MonitoringManager) IncrFramesReceived()  { mm.framesReceived.Add(1) }
func (mm *MonitoringManager) IncrFramesMalformed() { mm.framesMalformed.Add(1) }
func (mm *MonitoringManager) IncrEventsFiltered()  { mm.eventsFiltered.Add(1) }

// RecordOutcome counts one sink delivery attempt.
func (mm *MonitoringManager) RecordOutcome(sink string, outcome domain.Outcome) {
	switch outcome.Status {
	case domain.StatusDelivered:
		mm.delivered.Add(1)
	case domain.StatusDropped:
		mm.dropped.Add(1)
	case domain.StatusFailed:
		mm.failed.Add(1)
	}
	mm.sinkOutcomes.WithLabelValues(sink, outcome.Status.String()).Inc()
}

func (mm *MonitoringManager) SetQueueCapacity(n int) { mm.queueCapacity.Store(int64(n)) }
func (mm *MonitoringManager) SetQueueDepth(n int)    { mm.queueDepth.Store(int64(n)) }
func (mm *MonitoringManager) IncrQueueRejected()     { mm.queueRejected.Add(1) }
func (mm *MonitoringManager) AddQueueDiscarded(n int) {
	if n > 0 {
		mm.queueDiscarded.Add(uint64(n))
	}
}
func (mm *MonitoringManager) IncrDisablements() { mm.dbDisablements.Add(1) }

// ObserveWrite records one database write attempt and its duration.
func (mm *MonitoringManager) ObserveWrite(elapsed time.Duration, err error) {
	mm.dbWrites.Add(1)
	mm.dbWriteNanos.Add(int64(elapsed))
	if err != nil {
		mm.dbWriteErrors.Add(1)
	}
	mm.writeDuration.Observe(elapsed.Seconds())
}

// WriteTime is the cumulative time spent in database write attempts.
func (mm *MonitoringManager) WriteTime() time.Duration {
	return time.Duration(mm.dbWriteNanos.Load())
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MonitoringStats{
		Uptime:          time.Since(mm.startedAt).Round(time.Second).String(),
		FramesReceived:  mm.framesReceived.Load(),
		FramesMalformed: mm.framesMalformed.Load(),
		EventsFiltered:  mm.eventsFiltered.Load(),
		Delivered:       mm.delivered.Load(),
		Dropped:         mm.dropped.Load(),
		Failed:          mm.failed.Load(),
		QueueDepth:      mm.queueDepth.Load(),
		QueueCapacity:   mm.queueCapacity.Load(),
		QueueRejected:   mm.queueRejected.Load(),
		QueueDiscarded:  mm.queueDiscarded.Load(),
		DBWrites:        mm.dbWrites.Load(),
		DBWriteErrors:   mm.dbWriteErrors.Load(),
		DBWriteTime:     mm.WriteTime().String(),
		DBDisablements:  mm.dbDisablements.Load(),
		AllocMemMb:      m.Alloc / 1024 / 1024,
		NumGC:           m.NumGC,
	}
}
