package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"logserver/contract"
	"logserver/observability"

	"github.com/shirou/gopsutil/process"
)

const DefaultReportInterval = time.Minute

var _ contract.Worker = (*ReporterWorker)(nil)

// ReporterWorker logs a stats line at a fixed interval and once more on exit.
type ReporterWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
	proc       *process.Process
}

func NewReporterWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *ReporterWorker {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Debug("Process stats unavailable", "error", err)
		p = nil
	}
	return &ReporterWorker{log: log, monitoring: monitoring, interval: interval, proc: p}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Report()
			return nil
		case <-ticker.C:
			w.Report()
		}
	}
}

// Report writes the latest snapshot to the diagnostic logger.
func (w *ReporterWorker) Report() {
	stats := w.monitoring.GetLatest()
	attrs := []any{
		"uptime", stats.Uptime,
		"received", stats.FramesReceived,
		"malformed", stats.FramesMalformed,
		"filtered", stats.EventsFiltered,
		"delivered", stats.Delivered,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
		"queue", stats.QueueDepth,
		"queue_capacity", stats.QueueCapacity,
		"queue_discarded", stats.QueueDiscarded,
		"db_writes", stats.DBWrites,
		"db_write_time", stats.DBWriteTime,
		"alloc_mb", stats.AllocMemMb,
	}
	if w.proc != nil {
		if mem, err := w.proc.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
		}
		if cpu, err := w.proc.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu_percent", cpu)
		}
	}
	w.log.Info("Log server stats", attrs...)
}
