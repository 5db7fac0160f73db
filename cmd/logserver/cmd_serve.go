package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"logserver/contract"
	"logserver/domain"
	"logserver/internal"
	"logserver/observability"
	"logserver/runtime"
	"logserver/runtime/workers"
	"logserver/transport"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive events on the local socket and fan them out to the sinks",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the process: reopenSignal reopens the sinks,
// stopDatabaseSignal stops database logging, SIGINT/SIGTERM stop the server.
func runServe(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := internal.Load(envFile)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)
	monitoring := observability.NewMonitoringManager(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := transport.NewBus()
	defer bus.Close()
	listener := transport.NewListener(cfg.SocketNetwork, cfg.SocketAddress, bus, log)
	if err := listener.Listen(); err != nil {
		return err
	}

	var (
		storeMu sync.Mutex
		store   contract.EventStore
	)
	factory := runtime.NewServerFactory(cfg, bus, log, monitoring, func(s contract.EventStore) {
		storeMu.Lock()
		store = s
		storeMu.Unlock()
	})
	lifecycle := runtime.NewLifecycle(log, factory)
	if err := lifecycle.Start(ctx); err != nil {
		_ = listener.Close()
		return err
	}

	aux := workers.NewSupervisor(log, cfg.RestartInterval)
	aux.Add(listener)
	if cfg.MetricsAddress != "" {
		lister := internal.EventListerFunc(func(limit int) ([]domain.Event, error) {
			storeMu.Lock()
			defer storeMu.Unlock()
			l, ok := store.(internal.EventLister)
			if !ok {
				return nil, fmt.Errorf("database sink has no readable store")
			}
			return l.List(limit)
		})
		aux.Add(internal.NewDebugServer(cfg.MetricsAddress, log, monitoring, lister))
	}
	auxDone := make(chan struct{})
	go func() {
		defer close(auxDone)
		aux.Run(ctx)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, controlSignals()...)
	defer signal.Stop(signals)

	log.Info("Log server ready", "network", cfg.SocketNetwork, "address", cfg.SocketAddress)
	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down gracefully...")
			err := lifecycle.Stop(context.Background())
			aux.Stop()
			<-auxDone
			return err
		case sig := <-signals:
			switch {
			case sig == reopenSignal:
				if err := lifecycle.Reopen(); err != nil {
					log.Warn("Reopen failed", "error", err)
				}
			case isStopDatabaseSignal(sig):
				if err := lifecycle.StopDatabaseAccess(); err != nil {
					log.Warn("Stopping database logging failed", "error", err)
				}
			}
		}
	}
}
