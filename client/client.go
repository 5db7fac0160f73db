// Package client is the producer side: it turns calls into events and
// publishes them as frames.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"logserver/codec"
	"logserver/contract"
	"logserver/domain"
)

// Client emits events for one application. It is safe for concurrent use.
type Client struct {
	publisher   contract.Publisher
	application string
	threadName  string
	closer      io.Closer
}

type Option func(*Client)

// WithThreadName labels every event from this client.
func WithThreadName(name string) Option {
	return func(c *Client) { c.threadName = name }
}

// New publishes through any publisher, typically the in-process bus.
func New(publisher contract.Publisher, application string, opts ...Option) *Client {
	c := &Client{publisher: publisher, application: application}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to a listening server socket.
func Dial(ctx context.Context, network, address, application string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dialing log server %s: %w", address, err)
	}
	c := New(&connPublisher{conn: conn}, application, opts...)
	c.closer = conn
	return c, nil
}

// Emit publishes message with the caller's source location.
func (c *Client) Emit(ctx context.Context, severity domain.Severity, mask domain.Facility, message string) error {
	return c.emit(ctx, 2, severity, mask, message)
}

func (c *Client) Logf(ctx context.Context, severity domain.Severity, mask domain.Facility, format string, args ...any) error {
	return c.emit(ctx, 2, severity, mask, fmt.Sprintf(format, args...))
}

// Publish sends an already built event unchanged.
func (c *Client) Publish(ctx context.Context, e domain.Event) error {
	frame, err := codec.Encode(e)
	if err != nil {
		return err
	}
	return c.publisher.Publish(ctx, frame)
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) emit(ctx context.Context, skip int, severity domain.Severity, mask domain.Facility, message string) error {
	opts := []domain.EventOption{
		domain.WithApplication(c.application),
		domain.WithThread(c.threadName, gettid()),
	}
	if pc, file, line, ok := runtime.Caller(skip); ok {
		function := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			function = path.Base(fn.Name())
		}
		opts = append(opts, domain.WithLocation(file, line, function))
	}
	return c.Publish(ctx, domain.NewEvent(severity, mask, message, opts...))
}

// connPublisher writes frames to one socket. Writes are serialized so frames
// never interleave.
type connPublisher struct {
	mu   sync.Mutex
	conn net.Conn
}

func (p *connPublisher) Publish(ctx context.Context, frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := p.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return codec.WriteFrame(p.conn, frame)
}

var defaultClient atomic.Pointer[Client]

// SetDefault registers c for the package-level Logf. Passing nil unregisters.
func SetDefault(c *Client) {
	defaultClient.Store(c)
}

func Default() *Client {
	return defaultClient.Load()
}

// Logf emits through the registered client. Without one the event is
// discarded.
func Logf(severity domain.Severity, mask domain.Facility, format string, args ...any) error {
	c := defaultClient.Load()
	if c == nil {
		return nil
	}
	return c.emit(context.Background(), 2, severity, mask, fmt.Sprintf(format, args...))
}
