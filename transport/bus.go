// Package transport carries encoded frames from producers to the server.
package transport

import (
	"context"
	"fmt"
	"sync"

	"logserver/contract"
	apperrors "logserver/errors"
)

var (
	_ contract.Transport = (*Bus)(nil)
	_ contract.Publisher = (*Bus)(nil)
)

// Bus is the in-process publish/subscribe channel.
// A single publisher's frames reach every subscriber in publication order.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
	closed  bool
	closing chan struct{}
	once    sync.Once
}

func NewBus() *Bus {
	return &Bus{
		subs:    make(map[*subscription]struct{}),
		closing: make(chan struct{}),
	}
}

func (b *Bus) Subscribe(buffer int) (contract.Subscription, error) {
	if buffer < 0 {
		buffer = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("%w: bus closed", apperrors.ErrTransportUnavailable)
	}
	sub := &subscription{
		bus:    b,
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Publish hands frame to every current subscriber, waiting for buffer space.
// It gives up on a subscriber that closes meanwhile and returns ctx.Err() if
// ctx ends first. Frames published with no subscriber are lost.
func (b *Bus) Publish(ctx context.Context, frame []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("%w: bus closed", apperrors.ErrTransportUnavailable)
	}
	for sub := range b.subs {
		select {
		case sub.frames <- frame:
		case <-sub.done:
		case <-b.closing:
			return fmt.Errorf("%w: bus closed", apperrors.ErrTransportUnavailable)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribers is the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Subscribe and Publish calls fail.
func (b *Bus) Close() error {
	b.once.Do(func() { close(b.closing) })
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for sub := range subs {
		sub.once.Do(func() { close(sub.done) })
	}
	return nil
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

type subscription struct {
	bus    *Bus
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// Frames is never closed; readers select on their own context.
func (s *subscription) Frames() <-chan []byte { return s.frames }

func (s *subscription) Close() error {
	// done first: a publisher blocked on a full buffer holds the read lock
	s.once.Do(func() { close(s.done) })
	s.bus.remove(s)
	return nil
}
