package workers

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"logserver/domain"
	"logserver/observability"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporterWorker_ReportsOnTickAndExit(t *testing.T) {
	req := require.New(t)
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	monitoring := observability.NewMonitoringManager(log)
	monitoring.RecordOutcome("console", domain.Delivered())

	w := NewReporterWorker(log, monitoring, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	req.NoError(w.Run(ctx))

	lines := bytes.Count([]byte(out.String()), []byte(`msg="Log server stats"`))
	req.GreaterOrEqual(lines, 2)
	req.Contains(out.String(), "delivered=1")
}
