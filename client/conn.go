// Package client implements the outbound side of the Parley framing layer:
// a single connection to a server, a FIFO send queue, and a sequential
// message callback.
package client

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/eapache/queue"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tanno/parley/protocol"
)

// ErrConnClosed is returned when sending on an endpoint whose connection
// has terminated.
var ErrConnClosed = errors.New("connection closed")

// Conn is a client endpoint. It mirrors the server side of the connection
// state machine: a sequential header/body read loop dispatching to a single
// callback, and a writer draining a FIFO queue one write at a time.
//
// There is no reconnection. Once the read loop stops, no further messages
// are delivered and Done is closed.
type Conn struct {
	conn net.Conn
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}

	onMessage func(body []byte)

	closeOnce sync.Once
}

// Dial connects to a server and starts the read/write loops. It fails fast:
// an unreachable peer surfaces as an error here, not later.
//
// onMessage is invoked with the body of every complete frame, sequentially
// and never concurrently with itself.
func Dial(parentCtx context.Context, addr string, onMessage func(body []byte), log *zap.Logger) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to %s", addr)
	}

	ctx, cancel := context.WithCancel(parentCtx)

	c := &Conn{
		conn:      nc,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		pending:   queue.New(),
		wake:      make(chan struct{}, 1),
		onMessage: onMessage,
	}

	go c.run()

	return c, nil
}

// Send encodes body into a frame and enqueues it. Frames are written in
// enqueue order. An oversized body is truncated with a logged warning, the
// same policy the server applies.
func (c *Conn) Send(body []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
	}

	msg, err := protocol.New(body)
	if err != nil {
		c.log.Warn("Oversized body truncated", zap.Error(err))
	}

	c.mu.Lock()
	c.pending.Add(msg)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}

	return nil
}

// Done is closed once the read loop has terminated. After that no further
// messages will be delivered.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close terminates the endpoint. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) run() {
	defer close(c.done)

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
		c.log.Info("Disconnected from server", zap.Error(err))
	} else {
		c.log.Info("Disconnected from server")
	}

	_ = c.Close()
}

func (c *Conn) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		default:
			msg, err := protocol.ReadMessage(c.conn)
			if errors.Is(err, protocol.ErrHeaderRange) {
				c.log.Warn("Server sent an out-of-range header, body was bounded")
			} else if err != nil {
				return err
			}

			c.onMessage(msg.Body())
		}
	}
}

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
					c.log.Error("Failed to write to server", zap.Error(err))
					return nil
				}

				c.mu.Lock()
				c.pending.Remove()
				c.mu.Unlock()
			}
		}
	}
}
