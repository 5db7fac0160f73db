package sink

import (
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"logserver/domain"
	apperrors "logserver/errors"
	"logserver/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestQueue(capacity int) *WriteQueue {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewWriteQueue(capacity, observability.NewMonitoringManager(log))
}

func eventWithMessage(msg string) domain.Event {
	return domain.NewEvent(domain.SeverityInfo, domain.FacilityGeneral, msg)
}

func TestWriteQueue_FIFO(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(4)
	now := time.Now()

	for _, msg := range []string{"a", "b", "c"} {
		req.Equal(domain.StatusDelivered, q.Enqueue(eventWithMessage(msg), now).Status)
	}
	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.Pop()
		req.True(ok)
		req.Equal(want, e.Message)
	}
	_, ok := q.Pop()
	req.False(ok)
}

func TestWriteQueue_FullDropsWithoutBlocking(t *testing.T) {
	req := require.New(t)
	// Given a queue nobody drains
	q := newTestQueue(DefaultQueueCapacity)
	now := time.Now()

	accepted := 0
	start := time.Now()
	for i := 0; i < 1500; i++ {
		if q.Enqueue(eventWithMessage("x"), now).Status == domain.StatusDelivered {
			accepted++
		}
	}

	// Then exactly capacity events were accepted and none of the calls blocked
	req.Equal(DefaultQueueCapacity, accepted)
	req.Equal(DefaultQueueCapacity, q.Len())
	req.Less(time.Since(start), time.Second)

	out := q.Enqueue(eventWithMessage("late"), now)
	req.Equal(domain.StatusDropped, out.Status)
	req.ErrorIs(out.Reason, apperrors.ErrQueueFull)
}

func TestWriteQueue_NeverExceedsCapacity(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(16)
	now := time.Now()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 5000; i++ {
		if rng.Intn(3) == 0 {
			q.Pop()
		} else {
			q.Enqueue(eventWithMessage("x"), now)
		}
		req.LessOrEqual(q.Len(), q.Cap())
	}
}

func TestWriteQueue_Abort(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(4)
	q.Abort()
	q.Abort()

	out := q.Enqueue(eventWithMessage("x"), time.Now())
	req.Equal(domain.StatusDropped, out.Status)
	req.ErrorIs(out.Reason, apperrors.ErrQueueAborted)
	req.True(q.IsAborted())

	select {
	case <-q.Done():
	default:
		req.Fail("Done must be closed after Abort")
	}
}

func TestWriteQueue_DisableDiscardsAndRefuses(t *testing.T) {
	req := require.New(t)
	q := newTestQueue(8)
	now := time.Now()
	q.Enqueue(eventWithMessage("a"), now)
	q.Enqueue(eventWithMessage("b"), now)

	// When the queue is disabled
	discarded := q.Disable(now.Add(time.Second))

	// Then queued events are discarded, not held
	req.Equal(2, discarded)
	req.Equal(0, q.Len())

	out := q.Enqueue(eventWithMessage("c"), now.Add(500*time.Millisecond))
	req.ErrorIs(out.Reason, apperrors.ErrSinkDisabled)

	// And accepted again once the window elapsed
	out = q.Enqueue(eventWithMessage("d"), now.Add(time.Second))
	req.Equal(domain.StatusDelivered, out.Status)
}
