package observability

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"logserver/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_CountsOutcomes(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default())

	mm.IncrFramesReceived()
	mm.IncrFramesReceived()
	mm.IncrFramesMalformed()
	mm.RecordOutcome("console", domain.Delivered())
	mm.RecordOutcome("database", domain.Dropped(errors.New("full")))
	mm.RecordOutcome("database", domain.Failed(errors.New("boom")))
	mm.AddQueueDiscarded(3)
	mm.AddQueueDiscarded(0)
	mm.ObserveWrite(10*time.Millisecond, nil)
	mm.ObserveWrite(5*time.Millisecond, errors.New("down"))

	stats := mm.GetLatest()
	req.Equal(uint64(2), stats.FramesReceived)
	req.Equal(uint64(1), stats.FramesMalformed)
	req.Equal(uint64(1), stats.Delivered)
	req.Equal(uint64(1), stats.Dropped)
	req.Equal(uint64(1), stats.Failed)
	req.Equal(uint64(3), stats.QueueDiscarded)
	req.Equal(uint64(2), stats.DBWrites)
	req.Equal(uint64(1), stats.DBWriteErrors)
	req.Equal(15*time.Millisecond, mm.WriteTime())

	req.Equal(float64(1), testutil.ToFloat64(mm.sinkOutcomes.WithLabelValues("database", "dropped")))
}

func TestMonitoringManager_RegistryGathers(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default())
	mm.SetQueueDepth(7)

	families, err := mm.Registry().Gather()
	req.NoError(err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	req.True(names["logserver_queue_depth"])
	req.True(names["logserver_frames_received_total"])
}
