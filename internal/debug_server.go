package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"logserver/contract"
	"logserver/domain"
	"logserver/observability"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ contract.Worker = (*DebugServer)(nil)

// EventLister is implemented by stores that can read their events back.
type EventLister interface {
	List(limit int) ([]domain.Event, error)
}

// EventListerFunc adapts a function to EventLister.
type EventListerFunc func(limit int) ([]domain.Event, error)

func (f EventListerFunc) List(limit int) ([]domain.Event, error) { return f(limit) }

type eventRow struct {
	Time        string `json:"time"`
	Level       string `json:"level"`
	Application string `json:"application,omitempty"`
	Host        string `json:"host,omitempty"`
	PID         int64  `json:"pid"`
	TID         int64  `json:"tid"`
	Location    string `json:"location,omitempty"`
	Message     string `json:"message"`
}

// DebugServer exposes /metrics for Prometheus, /stats as a JSON snapshot and,
// when a lister is given, /events with the latest stored events.
type DebugServer struct {
	address    string
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	lister     EventLister
}

func NewDebugServer(address string, log *slog.Logger, monitoring *observability.MonitoringManager, lister EventLister) *DebugServer {
	return &DebugServer{address: address, log: log, monitoring: monitoring, lister: lister}
}

func (d *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.monitoring.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.monitoring.GetLatest())
	})
	if d.lister != nil {
		mux.HandleFunc("/events", d.handleEvents)
	}
	return mux
}

func (d *DebugServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events, err := d.lister.List(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows := make([]eventRow, 0, len(events))
	for _, e := range events {
		row := eventRow{
			Time:        e.Timestamp.UTC().Format(time.RFC3339Nano),
			Level:       e.Severity.String(),
			Application: e.Application,
			Host:        e.Hostname,
			PID:         e.ProcessID,
			TID:         e.ThreadID,
			Message:     e.Message,
		}
		if e.Location.File != "" {
			row.Location = fmt.Sprintf("%s:%d", e.Location.File, e.Location.Line)
		}
		rows = append(rows, row)
	}
	writeJSON(w, rows)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is canceled.
func (d *DebugServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.address)
	if err != nil {
		return fmt.Errorf("debug server listen %s: %w", d.address, err)
	}
	srv := &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	d.log.Info("Debug server listening", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
