package transport

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tanno/parley/protocol"
)

// greetingBody is the first frame every client receives after the server
// accepts it.
const greetingBody = "server: connected"

// ErrTargetNotFound is returned by SendTo when no live connection has the
// requested ID. Non-fatal: the send is dropped and logged.
var ErrTargetNotFound = pkgerrors.New("target connection not found")

// Handler is the collaborator contract the application implements on top of
// the server.
//
// OnConnect is invoked with connected=true after a client has been accepted
// and its connection started, and with connected=false exactly once after
// the connection has been removed from the registry. OnMessage receives
// every complete frame body along with the sender's ID.
//
// Both callbacks run on the connection's read goroutine. Slow handler code
// stalls that connection's reads, so keep them short and do any rendering
// or heavy work after returning.
type Handler interface {
	OnConnect(id uint64, connected bool)
	OnMessage(sender uint64, body []byte)
}

// Server accepts inbound connections, assigns them monotonically increasing
// IDs, and tracks them in a registry that backs the send-to-one/all/
// all-except primitives.
type Server struct {
	addr    string
	reuse   bool
	handler Handler
	log     *zap.Logger
	trace   bool

	cancel     context.CancelFunc
	listener   net.Listener
	loopWaiter sync.WaitGroup

	// mu guards conns and nextID. conns is appended in assignment order,
	// and IDs only ever grow, so the slice is always sorted by ID and
	// lookups can binary search instead of scanning.
	mu     sync.Mutex
	conns  []*Conn
	nextID uint64
}

// NewServer returns a server that has not started listening yet.
func NewServer(options Options) *Server {
	return &Server{
		addr:    net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuse:   options.Reuseport,
		handler: options.Handler,
		log:     options.Log,
		trace:   options.Trace,
	}
}

// SetHandler binds the application callbacks. The application usually needs
// the server as its Sender, so the handler is attached after construction.
// Must be called before Start.
func (s *Server) SetHandler(handler Handler) {
	s.handler = handler
}

// Start binds the listener and launches the accept loop. It returns once
// the server is listening; accepting runs in the background until the
// context is cancelled or Close is called.
func (s *Server) Start(parentCtx context.Context) error {
	if s.handler == nil {
		return pkgerrors.New("no handler attached")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel

	listener, err := s.listen()
	if err != nil {
		cancel()
		return pkgerrors.Wrapf(err, "failed to listen on %s", s.addr)
	}
	s.listener = listener

	s.log.Info("Listening for clients", zap.String("addr", listener.Addr().String()))

	go func() {
		<-ctx.Done()
		if cerr := s.listener.Close(); cerr != nil {
			s.log.Debug("Listener did not close cleanly", zap.Error(cerr))
		}
	}()

	s.loopWaiter.Add(1)
	go func() {
		defer s.loopWaiter.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

func (s *Server) listen() (net.Listener, error) {
	if s.reuse {
		return reuseport.Listen("tcp", s.addr)
	}
	return net.Listen("tcp", s.addr)
}

// Addr returns the address the server is listening on. Only valid after
// Start has returned successfully.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting, tears down every live connection, and waits for
// their loops to drain.
func (s *Server) Close() error {
	s.log.Info("Stopping server")
	s.cancel()

	s.mu.Lock()
	conns := make([]*Conn, len(s.conns))
	copy(conns, s.conns)
	s.mu.Unlock()

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.Close())
	}

	s.loopWaiter.Wait()
	return err
}

// acceptLoop admits one inbound connection at a time. Each accepted client
// gets the next ID, is appended to the registry, started, greeted, and then
// announced to the application.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.log.Info("Stopped accepting new connections")
			default:
				s.log.Error("Accept failed", zap.Error(err))
			}
			return
		}

		c := s.register(ctx, nc)

		s.log.Info("Client connected",
			zap.Uint64("id", c.ID()),
			zap.String("remoteAddr", nc.RemoteAddr().String()))

		greeting, _ := protocol.NewString(greetingBody)
		if serr := c.Send(greeting); serr != nil {
			s.log.Warn("Failed to greet client", zap.Uint64("id", c.ID()), zap.Error(serr))
		}

		s.handler.OnConnect(c.ID(), true)
	}
}

func (s *Server) register(ctx context.Context, nc net.Conn) *Conn {
	s.mu.Lock()
	id := s.nextID
	s.nextID++

	c := newConn(ctx, id, nc, s.dispatch, s.removeConn, s.log.Named("conn"))
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	s.loopWaiter.Add(1)
	go func() {
		defer s.loopWaiter.Done()
		c.run()
	}()

	return c
}

func (s *Server) dispatch(sender uint64, body []byte) {
	if s.trace {
		s.log.Debug("Frame received",
			zap.Uint64("sender", sender),
			zap.ByteString("body", body))
	}
	s.handler.OnMessage(sender, body)
}

// removeConn is handed to every connection as its disconnect hook. The
// registry entry is removed under the lock first, so by the time the
// application sees connected=false, a SendTo for that ID already reports
// not-found.
func (s *Server) removeConn(c *Conn) {
	s.mu.Lock()
	i, ok := s.indexOf(c.ID())
	if ok {
		s.conns = append(s.conns[:i], s.conns[i+1:]...)
	}
	s.mu.Unlock()

	if ok {
		s.handler.OnConnect(c.ID(), false)
	}
}

// indexOf binary searches the ID-sorted registry. Callers must hold mu.
func (s *Server) indexOf(id uint64) (int, bool) {
	i := sort.Search(len(s.conns), func(i int) bool {
		return s.conns[i].ID() >= id
	})
	if i < len(s.conns) && s.conns[i].ID() == id {
		return i, true
	}
	return 0, false
}

// SendTo enqueues one frame for the connection with the given ID. A miss is
// logged and reported as ErrTargetNotFound; nothing is written.
func (s *Server) SendTo(id uint64, body []byte) error {
	msg, err := protocol.New(body)
	if err != nil {
		s.log.Warn("Oversized body truncated", zap.Uint64("target", id), zap.Error(err))
	}

	s.mu.Lock()
	i, ok := s.indexOf(id)
	var c *Conn
	if ok {
		c = s.conns[i]
	}
	s.mu.Unlock()

	if !ok {
		s.log.Warn("Attempted to send to a client that is not connected",
			zap.Uint64("target", id))
		return ErrTargetNotFound
	}

	return c.Send(msg)
}

// SendToAll enqueues one independently-copied frame per live connection, in
// registry order.
func (s *Server) SendToAll(body []byte) error {
	return s.broadcast(body, func(*Conn) bool { return true })
}

// SendToAllExcept is SendToAll minus the named connection.
func (s *Server) SendToAllExcept(exclude uint64, body []byte) error {
	return s.broadcast(body, func(c *Conn) bool { return c.ID() != exclude })
}

func (s *Server) broadcast(body []byte, include func(*Conn) bool) (err error) {
	msg, merr := protocol.New(body)
	if merr != nil {
		s.log.Warn("Oversized body truncated", zap.Error(merr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conns {
		if !include(c) || !c.Valid() {
			continue
		}
		// Send deep-copies the frame, so every connection's queue owns
		// its own buffer.
		err = multierr.Append(err, c.Send(msg))
	}

	return err
}
