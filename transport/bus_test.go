package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "logserver/errors"

	"github.com/stretchr/testify/require"
)

func TestBus_PreservesPublisherOrder(t *testing.T) {
	req := require.New(t)
	bus := NewBus()
	defer bus.Close()

	// Given two subscribers with small buffers
	first, err := bus.Subscribe(4)
	req.NoError(err)
	second, err := bus.Subscribe(4)
	req.NoError(err)
	req.Equal(2, bus.Subscribers())

	// When a single publisher sends more frames than the buffers hold
	go func() {
		for i := range 50 {
			_ = bus.Publish(context.Background(), []byte(fmt.Sprintf("frame-%02d", i)))
		}
	}()

	// Then both subscribers see every frame in order
	for i := range 50 {
		want := fmt.Sprintf("frame-%02d", i)
		req.Equal(want, string(<-first.Frames()))
		req.Equal(want, string(<-second.Frames()))
	}
}

func TestBus_PublishHonorsContext(t *testing.T) {
	req := require.New(t)
	bus := NewBus()
	defer bus.Close()

	// Given a subscriber that never reads
	_, err := bus.Subscribe(1)
	req.NoError(err)
	req.NoError(bus.Publish(context.Background(), []byte("fills the buffer")))

	// When the next publish cannot be delivered
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = bus.Publish(ctx, []byte("blocked"))

	// Then the publisher is released by its context
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestBus_ClosedSubscriptionReleasesPublisher(t *testing.T) {
	req := require.New(t)
	bus := NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(0)
	req.NoError(err)

	published := make(chan error, 1)
	go func() { published <- bus.Publish(context.Background(), []byte("x")) }()

	time.Sleep(20 * time.Millisecond)
	req.NoError(sub.Close())

	select {
	case err := <-published:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("publisher still blocked after the subscription closed")
	}
	req.Equal(0, bus.Subscribers())
}

func TestBus_NoSubscriberDropsSilently(t *testing.T) {
	req := require.New(t)
	bus := NewBus()
	defer bus.Close()

	req.NoError(bus.Publish(context.Background(), []byte("nobody listens")))
}

func TestBus_Close(t *testing.T) {
	req := require.New(t)
	bus := NewBus()

	// Given a publisher blocked on a subscriber that never reads
	_, err := bus.Subscribe(0)
	req.NoError(err)
	published := make(chan error, 1)
	go func() { published <- bus.Publish(context.Background(), []byte("x")) }()
	time.Sleep(20 * time.Millisecond)

	// When the bus closes
	req.NoError(bus.Close())

	// Then the publisher fails instead of hanging
	select {
	case err := <-published:
		req.ErrorIs(err, apperrors.ErrTransportUnavailable)
	case <-time.After(time.Second):
		req.Fail("publisher still blocked after close")
	}

	_, err = bus.Subscribe(1)
	req.ErrorIs(err, apperrors.ErrTransportUnavailable)
	req.ErrorIs(bus.Publish(context.Background(), []byte("late")), apperrors.ErrTransportUnavailable)
}
