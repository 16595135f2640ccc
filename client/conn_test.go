package client_test

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/tanno/parley/client"
	"github.com/tanno/parley/protocol"
)

// stubServer accepts a single TCP peer so the endpoint under test has
// something real to talk to.
type stubServer struct {
	listener net.Listener

	mu   sync.Mutex
	peer net.Conn
}

func newStubServer() *stubServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).To(Succeed())

	s := &stubServer{listener: listener}

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.peer = conn
		s.mu.Unlock()
	}()

	return s
}

func (s *stubServer) Addr() string {
	return s.listener.Addr().String()
}

// Peer blocks until the accept goroutine has stored the connection.
func (s *stubServer) Peer() net.Conn {
	Eventually(func() net.Conn {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.peer
	}).ShouldNot(BeNil())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *stubServer) Write(body string) {
	msg, err := protocol.NewString(body)
	Expect(err).To(Succeed())
	_, err = s.Peer().Write(msg.Bytes())
	Expect(err).To(Succeed())
}

func (s *stubServer) Read() []byte {
	peer := s.Peer()
	Expect(peer.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
	msg, err := protocol.ReadMessage(peer)
	Expect(err).To(Succeed())
	return msg.Body()
}

func (s *stubServer) Close() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer != nil {
		s.peer.Close()
	}
}

// recorder collects delivered bodies behind a mutex.
type recorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recorder) record(body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, string(body))
}

func (r *recorder) Bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	bodies := make([]string, len(r.bodies))
	copy(bodies, r.bodies)
	return bodies
}

var _ = Describe("Conn", func() {
	It("fails fast when the server is unreachable", func() {
		// A listener closed before dialing guarantees a refused port.
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(Succeed())
		addr := listener.Addr().String()
		listener.Close()

		_, err = client.Dial(context.Background(), addr, func([]byte) {}, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	It("delivers received frames in wire order", func() {
		server := newStubServer()
		defer server.Close()

		rec := &recorder{}
		conn, err := client.Dial(context.Background(), server.Addr(), rec.record, zap.NewNop())
		Expect(err).To(Succeed())
		defer conn.Close()

		server.Write("first")
		server.Write("second")
		server.Write("third")

		Eventually(rec.Bodies).Should(Equal([]string{"first", "second", "third"}))
	})

	It("writes queued frames in send order", func() {
		server := newStubServer()
		defer server.Close()

		conn, err := client.Dial(context.Background(), server.Addr(), func([]byte) {}, zap.NewNop())
		Expect(err).To(Succeed())
		defer conn.Close()

		Expect(conn.Send([]byte("one"))).To(Succeed())
		Expect(conn.Send([]byte("two"))).To(Succeed())

		Expect(string(server.Read())).To(Equal("one"))
		Expect(string(server.Read())).To(Equal("two"))
	})

	It("truncates an oversized body before framing", func() {
		server := newStubServer()
		defer server.Close()

		conn, err := client.Dial(context.Background(), server.Addr(), func([]byte) {}, zap.NewNop())
		Expect(err).To(Succeed())
		defer conn.Close()

		big := bytes.Repeat([]byte{'q'}, protocol.MaxBodyLength+100)
		Expect(conn.Send(big)).To(Succeed())

		body := server.Read()
		Expect(body).To(HaveLen(protocol.MaxBodyLength))
		Expect(body).To(Equal(big[:protocol.MaxBodyLength]))
	})

	It("closes Done when the server goes away", func() {
		server := newStubServer()

		conn, err := client.Dial(context.Background(), server.Addr(), func([]byte) {}, zap.NewNop())
		Expect(err).To(Succeed())
		defer conn.Close()

		server.Close()

		Eventually(conn.Done()).Should(BeClosed())
		Eventually(func() error { return conn.Send([]byte("late")) }).
			Should(MatchError(client.ErrConnClosed))
	})

	It("stops on context cancellation", func() {
		server := newStubServer()
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		conn, err := client.Dial(ctx, server.Addr(), func([]byte) {}, zap.NewNop())
		Expect(err).To(Succeed())
		defer conn.Close()

		cancel()

		Eventually(conn.Done()).Should(BeClosed())
	})
})
