package conn

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/duplex/pkg/httpmsg"
	"github.com/vango-dev/duplex/pkg/httpparse"
	"github.com/vango-dev/duplex/pkg/metrics"
	"github.com/vango-dev/duplex/pkg/tracing"
)

const (
	// ReadBufferSize is the size of the per-connection read buffer.
	ReadBufferSize = 8192

	// DefaultMaxRequestBytes bounds the size of a request head.
	DefaultMaxRequestBytes = 64 << 10
)

var nextID atomic.Uint64

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger. The connection adds its own attributes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Conn) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Conn) {
		c.tracer = t
	}
}

// WithMaxRequestBytes bounds the request head. Values below one use
// DefaultMaxRequestBytes.
func WithMaxRequestBytes(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxRequestBytes = n
		}
	}
}

// WithContext sets the parent of the connection context.
func WithContext(ctx context.Context) Option {
	return func(c *Conn) {
		if ctx != nil {
			c.parent = ctx
		}
	}
}

// Conn is an accepted socket together with its read buffer and strand.
type Conn struct {
	id     uint64
	nc     net.Conn
	strand *Strand

	logger          *slog.Logger
	metrics         *metrics.Collector
	tracer          *tracing.Tracer
	maxRequestBytes int

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	buf     []byte
	pending []byte // bytes read past the request head
	reading atomic.Bool
	refs    atomic.Int64

	writeMu sync.Mutex

	readyMu sync.Mutex
	ready   func(*Conn, error)

	closeOnce sync.Once
	closed    atomic.Bool
}

// New wraps nc. The returned connection holds one reference, which Start
// consumes.
func New(nc net.Conn, pool *Pool, opts ...Option) *Conn {
	c := &Conn{
		id:              nextID.Add(1),
		nc:              nc,
		strand:          NewStrand(pool),
		logger:          slog.Default(),
		maxRequestBytes: DefaultMaxRequestBytes,
		parent:          context.Background(),
		buf:             make([]byte, ReadBufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "conn", "conn_id", c.id)
	c.ctx, c.cancel = context.WithCancel(c.parent)
	c.refs.Store(1)
	c.metrics.ConnOpened()
	return c
}

// ID returns the process-unique connection id.
func (c *Conn) ID() uint64 {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Context is canceled when the socket is shut down.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Logger returns the connection logger.
func (c *Conn) Logger() *slog.Logger {
	return c.logger
}

// Start reads the request head, dispatches it to h and writes the reply.
func (c *Conn) Start(h Handler) {
	started := time.Now()
	parser := httpparse.NewParser()
	req := &httpmsg.Request{}
	total := 0

	var onRead func(c *Conn, data []byte, err error)
	onRead = func(c *Conn, data []byte, err error) {
		if err != nil {
			// No reply; the connection goes away with its last reference.
			c.logger.Debug("read failed before request completed", "error", err)
			return
		}
		total += len(data)

		res, n := parser.Parse(req, data)
		switch {
		case res == httpparse.Accept:
			if n < len(data) {
				c.pending = append([]byte(nil), data[n:]...)
			}
			c.dispatch(h, req, started)
		case res == httpparse.Reject:
			c.logger.Debug("bad request", "remote_addr", c.RemoteAddr().String())
			c.reply(httpmsg.StockReply(httpmsg.StatusBadRequest), started)
		case total >= c.maxRequestBytes:
			c.logger.Debug("bad request", "error", ErrRequestTooLarge, "bytes", total)
			c.reply(httpmsg.StockReply(httpmsg.StatusBadRequest), started)
		default:
			c.Read(onRead)
		}
	}

	c.Read(onRead)
	c.Release()
}

func (c *Conn) dispatch(h Handler, req *httpmsg.Request, started time.Time) {
	ctx, span := c.tracer.StartRequest(c.ctx, req.Method, req.URI)

	rep := httpmsg.Reply{}
	handled := h.Handle(ctx, c, req, &rep)
	if !handled && rep.Status == 0 {
		rep = httpmsg.StockReply(httpmsg.StatusNotFound)
	}

	err := c.reply(rep, started)
	tracing.EndRequest(span, int(rep.Status), err)
}

// reply writes rep and then runs the ready callback with the write result.
func (c *Conn) reply(rep httpmsg.Reply, started time.Time) error {
	err := c.writeBuffers(rep.Buffers())
	c.metrics.ObserveRequest(int(rep.Status), time.Since(started))
	if err != nil {
		c.logger.Debug("reply write failed", "status", int(rep.Status), "error", err)
	}

	c.readyMu.Lock()
	ready := c.ready
	c.ready = nil
	c.readyMu.Unlock()
	if ready != nil {
		ready(c, err)
	}
	return err
}

// OnReady registers fn to run once, after the reply to the first request has
// been written. A handler typically calls it from Handle.
func (c *Conn) OnReady(fn func(c *Conn, err error)) {
	c.readyMu.Lock()
	c.ready = fn
	c.readyMu.Unlock()
}

// Read starts an asynchronous read into the connection buffer. fn runs on the
// connection strand; data is only valid until the next Read.
//
// Only one read may be outstanding; a second one completes immediately with
// ErrReadInProgress. Bytes that arrived behind the request head are delivered
// by the first Read after Start dispatched the request.
func (c *Conn) Read(fn func(c *Conn, data []byte, err error)) {
	c.Retain()
	if !c.reading.CompareAndSwap(false, true) {
		c.strand.Post(func() {
			defer c.Release()
			fn(c, nil, ErrReadInProgress)
		})
		return
	}

	if pending := c.pending; len(pending) > 0 {
		c.pending = nil
		c.strand.Post(func() {
			defer c.Release()
			c.reading.Store(false)
			fn(c, pending, nil)
		})
		return
	}

	go func() {
		n, err := c.nc.Read(c.buf)
		if err != nil {
			err = &OpError{ID: c.id, Op: "read", Err: err}
		}
		c.strand.Post(func() {
			defer c.Release()
			c.reading.Store(false)
			if n > 0 {
				// Deliver the data first; a subsequent read reports the error.
				err = nil
			}
			fn(c, c.buf[:n], err)
		})
	}()
}

// Write sends data and blocks until it has been handed to the socket. Writes
// to one connection are serialized; writes to different connections are not.
func (c *Conn) Write(data []byte) error {
	return c.writeBuffers(net.Buffers{data})
}

func (c *Conn) writeBuffers(bufs net.Buffers) error {
	if c.closed.Load() {
		return &OpError{ID: c.id, Op: "write", Err: ErrClosed}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := bufs.WriteTo(c.nc); err != nil {
		return &OpError{ID: c.id, Op: "write", Err: err}
	}
	return nil
}

// SetReadDeadline bounds the outstanding and future reads.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

// Retain adds a reference.
func (c *Conn) Retain() {
	c.refs.Add(1)
}

// Release drops a reference. The last release shuts the socket down.
func (c *Conn) Release() {
	n := c.refs.Add(-1)
	switch {
	case n == 0:
		c.shutdown()
	case n < 0:
		c.logger.Error("connection released more often than retained", "refs", n)
	}
}

// Close shuts the socket down immediately, independent of the reference
// count. Outstanding reads complete with an error.
func (c *Conn) Close() error {
	c.shutdown()
	return nil
}

// Closed reports whether the socket has been shut down.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if hc, ok := c.nc.(halfCloser); ok {
			_ = hc.CloseRead()
			_ = hc.CloseWrite()
		}
		if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("close failed", "error", err)
		}
		c.cancel()
		c.metrics.ConnClosed()
	})
}
