package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"logserver/contract"
	"logserver/internal"
	"logserver/observability"
	"logserver/repositories"
	"logserver/runtime/workers"
	"logserver/sink"
)

// BuildSinks constructs the configured sinks in their fixed dispatch order:
// console, file, syslog, database. A database store that cannot be opened is
// left out with a warning; the other sinks are unaffected.
func BuildSinks(cfg internal.Config, log *slog.Logger, monitoring *observability.MonitoringManager) []contract.Sink {
	opts := cfg.SinkOptions()
	var sinks []contract.Sink
	if opts.ConsoleEnabled {
		sinks = append(sinks, sink.NewConsoleSink("console", os.Stdout, cfg.ConsoleColor, log))
	}
	if opts.FilePath != "" {
		sinks = append(sinks, sink.NewFileSink("file", opts.FilePath, log))
	}
	if opts.SyslogEnabled {
		sinks = append(sinks, sink.NewSyslogSink("syslog", cfg.Application, cfg.SyslogFacility, log))
	}

	store, err := OpenEventStore(cfg, log)
	if err != nil {
		log.Warn("Database sink unavailable, leaving it out", "driver", cfg.DatabaseDriver, "error", err)
		return sinks
	}
	if store != nil {
		sinks = append(sinks, sink.NewDatabaseSink(store, log, monitoring, sink.DatabaseConfig{
			Name:                "database",
			Capacity:            cfg.QueueCapacity,
			MinDisabledTime:     cfg.MinDisabledTime(),
			WriteTimeout:        cfg.WriteTimeout,
			DrainTimeout:        cfg.DrainTimeout,
			ErrorReportInterval: cfg.ErrorReportInterval,
		}))
	}
	return sinks
}

// OpenEventStore opens the store selected by DATABASE_DRIVER, nil for "none".
func OpenEventStore(cfg internal.Config, log *slog.Logger) (contract.EventStore, error) {
	switch cfg.DatabaseDriver {
	case "", "none":
		return nil, nil
	case "sqlite":
		ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
		defer cancel()
		repo, err := repositories.OpenSQLLogRepository(ctx, cfg.DatabasePath, cfg.DatabaseTable, cfg.DatabaseCreateTable, log)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "badger":
		repo, err := repositories.OpenBadgerLogRepository(cfg.DatabasePath, cfg.DatabaseTable, log)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

// NewServerFactory builds a server from cfg on every lifecycle start, so a
// restart gets fresh sinks. onStore, when set, receives the database store of
// each new server.
func NewServerFactory(cfg internal.Config, transport contract.Transport, log *slog.Logger,
	monitoring *observability.MonitoringManager, onStore func(contract.EventStore)) ServerFactory {
	return func(ctx context.Context) (*Server, error) {
		filter, err := cfg.Filter()
		if err != nil {
			return nil, err
		}
		sinks := BuildSinks(cfg, log, monitoring)
		if onStore != nil {
			for _, s := range sinks {
				if ds, ok := s.(*sink.DatabaseSink); ok {
					onStore(ds.Store())
				}
			}
		}
		return NewServer(log, monitoring, ServerOptions{
			Transport:          transport,
			Sinks:              sinks,
			SubscriptionBuffer: cfg.SubscriptionBuffer,
			Filter:             &filter,
			// the database sink may spend one write timeout past its own drain
			DrainTimeout:       cfg.DrainTimeout + cfg.WriteTimeout,
			RestartInterval:    cfg.RestartInterval,
			Workers: []contract.Worker{
				workers.NewReporterWorker(log, monitoring, cfg.ReportInterval),
			},
		}), nil
	}
}
