package workers

import (
	"context"
	"testing"
	"time"

	"logserver/codec"
	"logserver/contract"
	"logserver/domain"
	"logserver/errors"
	"logserver/mocks"
	"logserver/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func encode(t *testing.T, sev domain.Severity, mask domain.Facility, msg string) []byte {
	t.Helper()
	frame, err := codec.Encode(domain.NewEvent(sev, mask, msg))
	require.NoError(t, err)
	return frame
}

func namedSink(ctrl *gomock.Controller, name string) *mocks.MockSink {
	s := mocks.NewMockSink(ctrl)
	s.EXPECT().Name().Return(name).AnyTimes()
	return s
}

func hasMessage(msg string) gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		e, ok := x.(domain.Event)
		return ok && e.Message == msg
	})
}

func TestIngestionWorker_FanoutInRegistrationOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("DEBUG")
	monitoring := observability.NewMonitoringManager(log)

	console := namedSink(ctrl, "console")
	file := namedSink(ctrl, "file")
	database := namedSink(ctrl, "database")

	// Given three sinks, every event reaches them in registration order
	gomock.InOrder(
		console.EXPECT().Handle(gomock.Any(), hasMessage("a")).Return(domain.Delivered()),
		file.EXPECT().Handle(gomock.Any(), hasMessage("a")).Return(domain.Delivered()),
		database.EXPECT().Handle(gomock.Any(), hasMessage("a")).Return(domain.Dropped(errors.ErrQueueFull)),
		console.EXPECT().Handle(gomock.Any(), hasMessage("b")).Return(domain.Delivered()),
		file.EXPECT().Handle(gomock.Any(), hasMessage("b")).Return(domain.Delivered()),
		database.EXPECT().Handle(gomock.Any(), hasMessage("b")).Return(domain.Delivered()),
	)

	w := NewIngestionWorker(log, nil, nil, []contract.Sink{console, file, database}, domain.AcceptAll, monitoring)

	// When two frames are dispatched
	w.Dispatch(context.Background(), encode(t, domain.SeverityInfo, domain.FacilityGeneral, "a"))
	w.Dispatch(context.Background(), encode(t, domain.SeverityInfo, domain.FacilityGeneral, "b"))

	// Then the outcomes are counted per sink
	stats := monitoring.GetLatest()
	req.Equal(uint64(2), stats.FramesReceived)
	req.Equal(uint64(5), stats.Delivered)
	req.Equal(uint64(1), stats.Dropped)
}

func TestIngestionWorker_MalformedFrameIsCountedAndSkipped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("DEBUG")
	monitoring := observability.NewMonitoringManager(log)
	console := namedSink(ctrl, "console")
	console.EXPECT().Handle(gomock.Any(), hasMessage("after")).Return(domain.Delivered()).Times(1)

	frames := make(chan []byte, 3)
	frames <- []byte{0, 0, 0, 9, 1, 2}
	frames <- []byte("garbage")
	frames <- encode(t, domain.SeverityInfo, domain.FacilityGeneral, "after")

	w := NewIngestionWorker(log, frames, nil, []contract.Sink{console}, domain.AcceptAll, monitoring)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The loop keeps going past the bad frames
	req.Eventually(func() bool { return monitoring.GetLatest().Delivered == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-done)
	req.Equal(uint64(2), monitoring.GetLatest().FramesMalformed)
	req.Equal(uint64(3), monitoring.GetLatest().FramesReceived)
}

func TestIngestionWorker_Filter(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("DEBUG")
	monitoring := observability.NewMonitoringManager(log)
	console := namedSink(ctrl, "console")
	console.EXPECT().Handle(gomock.Any(), hasMessage("kept")).Return(domain.Delivered()).Times(1)

	filter := domain.Filter{MaxSeverity: domain.SeverityInfo, Mask: domain.FacilityDatabase | domain.FacilityGeneral}
	w := NewIngestionWorker(log, nil, nil, []contract.Sink{console}, filter, monitoring)

	w.Dispatch(context.Background(), encode(t, domain.SeverityDebug, domain.FacilityDatabase, "too verbose"))
	w.Dispatch(context.Background(), encode(t, domain.SeverityErr, domain.FacilityNetwork, "other facility"))
	w.Dispatch(context.Background(), encode(t, domain.SeverityWarning, domain.FacilityDatabase, "kept"))

	req.Equal(uint64(2), monitoring.GetLatest().EventsFiltered)
}

func TestIngestionWorker_PanickingSinkDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("DEBUG")
	monitoring := observability.NewMonitoringManager(log)

	broken := namedSink(ctrl, "broken")
	broken.EXPECT().Handle(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, domain.Event) domain.Outcome {
		panic("sink bug")
	})
	healthy := namedSink(ctrl, "healthy")
	healthy.EXPECT().Handle(gomock.Any(), gomock.Any()).Return(domain.Delivered())

	w := NewIngestionWorker(log, nil, nil, []contract.Sink{broken, healthy}, domain.AcceptAll, monitoring)
	outcomes := w.Fanout(context.Background(), domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, "x"))

	req.Len(outcomes, 2)
	req.Equal(domain.StatusFailed, outcomes[0].Status)
	req.ErrorIs(outcomes[0].Reason, errors.ErrSinkPanic)
	req.Equal(domain.StatusDelivered, outcomes[1].Status)
}

func TestIngestionWorker_ReopenBeforeNextFrame(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromString("DEBUG")
	monitoring := observability.NewMonitoringManager(log)
	file := namedSink(ctrl, "file")

	// Given a reopen requested while a frame is already pending
	gomock.InOrder(
		file.EXPECT().Reopen().Return(nil),
		file.EXPECT().Handle(gomock.Any(), hasMessage("rotated")).Return(domain.Delivered()),
	)
	frames := make(chan []byte, 1)
	reopen := make(chan struct{}, 1)
	reopen <- struct{}{}
	frames <- encode(t, domain.SeverityInfo, domain.FacilityGeneral, "rotated")

	w := NewIngestionWorker(log, frames, reopen, []contract.Sink{file}, domain.AcceptAll, monitoring)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Then the reopen is served before the frame is written
	req.Eventually(func() bool { return monitoring.GetLatest().Delivered == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-done)
}
