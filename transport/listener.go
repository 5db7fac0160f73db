package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"logserver/codec"
	"logserver/contract"
	apperrors "logserver/errors"
)

var _ contract.Worker = (*Listener)(nil)

// Listener accepts producer connections on a local socket and republishes
// every frame they send. Each connection is one publisher.
type Listener struct {
	network   string
	address   string
	publisher contract.Publisher
	log       *slog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewListener(network, address string, publisher contract.Publisher, log *slog.Logger) *Listener {
	return &Listener{
		network:   network,
		address:   address,
		publisher: publisher,
		log:       log,
		conns:     make(map[net.Conn]struct{}),
	}
}

// Listen binds the socket. A stale unix socket file left by a previous run is
// removed first.
func (l *Listener) Listen() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return nil
	}
	if l.network == "unix" {
		if fi, err := os.Lstat(l.address); err == nil && fi.Mode()&os.ModeSocket != 0 {
			_ = os.Remove(l.address)
		}
	}
	ln, err := net.Listen(l.network, l.address)
	if err != nil {
		return fmt.Errorf("%w: listen %s %s: %v", apperrors.ErrTransportUnavailable, l.network, l.address, err)
	}
	l.ln = ln
	return nil
}

// Addr is the bound address, nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) Run(ctx context.Context) error {
	if err := l.Listen(); err != nil {
		return err
	}
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	l.log.Info("Listening for log producers", "network", l.network, "address", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.wg.Wait()
				return nil
			}
			_ = l.Close()
			l.wg.Wait()
			return fmt.Errorf("accepting producer connection: %w", err)
		}
		l.track(conn)
		l.wg.Add(1)
		go l.serve(ctx, conn)
	}
}

func (l *Listener) track(conn net.Conn) {
	l.mu.Lock()
	l.conns[conn] = struct{}{}
	l.mu.Unlock()
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
}

func (l *Listener) serve(ctx context.Context, conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	for {
		frame, err := codec.ReadFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.Is(err, apperrors.ErrFrameTooLarge):
				// the stream cannot be resynchronized past an unread payload
				l.log.Warn("Closing producer connection", "remote", conn.RemoteAddr().String(), "error", err)
			default:
				l.log.Debug("Producer connection ended", "error", err)
			}
			return
		}
		if err := l.publisher.Publish(ctx, frame); err != nil {
			l.log.Debug("Dropping producer connection", "error", err)
			return
		}
	}
}

// Close stops accepting and disconnects every producer.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if l.ln != nil {
		err = l.ln.Close()
		l.ln = nil
		if l.network == "unix" {
			_ = os.Remove(l.address)
		}
	}
	for conn := range l.conns {
		_ = conn.Close()
	}
	return err
}
