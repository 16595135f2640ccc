package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tanno/parley/protocol"
)

// ErrConnClosed is returned when a frame is enqueued on a connection that
// has already been torn down.
var ErrConnClosed = errors.New("connection closed")

// Conn is one live peer on the server side. It owns the socket for its
// lifetime and runs two loops: a sequential read loop that dispatches one
// frame at a time to the message callback, and a writer that drains the
// pending queue one in-flight write at a time.
//
// The two loops use independent socket directions and run concurrently with
// each other, but each loop's own steps are strictly sequential. There is
// never more than one outstanding read or one outstanding write on a single
// connection.
type Conn struct {
	id   uint64
	conn net.Conn
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards pending. wake has capacity 1; an enqueue nudges the
	// writer, which then drains the queue until it is empty again.
	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}

	onMessage func(sender uint64, body []byte)
	onClose   func(c *Conn)

	closeOnce sync.Once
}

func newConn(
	parentCtx context.Context,
	id uint64,
	nc net.Conn,
	onMessage func(sender uint64, body []byte),
	onClose func(c *Conn),
	log *zap.Logger,
) *Conn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &Conn{
		id:        id,
		conn:      nc,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		pending:   queue.New(),
		wake:      make(chan struct{}, 1),
		onMessage: onMessage,
		onClose:   onClose,
	}
}

// ID returns the connection's registry ID. IDs are assigned monotonically
// from 0 and never reused within a process run.
func (c *Conn) ID() uint64 {
	return c.id
}

// Valid reports whether the connection has not been torn down yet.
func (c *Conn) Valid() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Send enqueues msg on the outbound queue. The frame is deep-copied before
// it is queued so the caller's buffer, and every other connection's queue,
// stays independent of this connection's write schedule.
func (c *Conn) Send(msg protocol.Message) error {
	if !c.Valid() {
		return ErrConnClosed
	}

	c.mu.Lock()
	c.pending.Add(msg.Copy())
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
		// Writer is already awake and will see the new frame.
	}

	return nil
}

// Close tears the connection down. Safe to call more than once; the
// disconnect callback still fires exactly once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// run drives the read and write loops until the peer disconnects, a read
// fails, or the context is cancelled. It closes the socket and invokes the
// disconnect callback before returning.
func (c *Conn) run() {
	// A cancelled context must also unblock a read that is already in
	// flight, and the only way to do that is to close the socket.
	go func() {
		<-c.ctx.Done()
		_ = c.Close()
	}()

	group, ctx := errgroup.WithContext(c.ctx)

	group.Go(func() error {
		return c.readLoop(ctx)
	})

	group.Go(func() error {
		return c.writeLoop(ctx)
	})

	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Info("Connection closed", zap.Uint64("id", c.id), zap.Error(err))
	} else {
		c.log.Info("Connection closed", zap.Uint64("id", c.id))
	}

	if cerr := c.Close(); cerr != nil {
		c.log.Debug("Socket did not close cleanly",
			zap.Uint64("id", c.id), zap.Error(cerr))
	}

	c.onClose(c)
}

// readLoop reads header then body, dispatches the frame synchronously, and
// only then issues the next header read. That sequencing is what gives the
// application in-order delivery per connection.
//
// Any read error tears the connection down. EOF and connection-reset mean
// the peer left; everything else cannot be told apart in a way the
// application could act on, so it takes the same disconnect path.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		default:
			msg, err := protocol.ReadMessage(c.conn)
			if errors.Is(err, protocol.ErrHeaderRange) {
				c.log.Warn("Peer sent an out-of-range header, body was bounded",
					zap.Uint64("id", c.id))
			} else if err != nil {
				return err
			}

			c.onMessage(c.id, msg.Body())
		}
	}
}

// writeLoop writes the frame at the head of the pending queue and removes
// it once the write completes, repeating until the queue is empty, then
// sleeps until the next enqueue.
//
// A failed write is logged and stalls the queue: no retries at this layer.
// The connection is ultimately reaped by its read loop noticing the peer is
// gone.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.wake:
			for {
				c.mu.Lock()
				if c.pending.Length() == 0 {
					c.mu.Unlock()
					break
				}
				msg := c.pending.Peek().(protocol.Message)
				c.mu.Unlock()

				if _, err := c.conn.Write(msg.Bytes()); err != nil {
					c.log.Error("Failed to write to client",
						zap.Uint64("id", c.id), zap.Error(err))
					return nil
				}

				c.mu.Lock()
				c.pending.Remove()
				c.mu.Unlock()
			}
		}
	}
}
