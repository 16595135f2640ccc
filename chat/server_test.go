package chat_test

import (
	"fmt"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/tanno/parley/chat"
)

// fakeSender records every outgoing message instead of hitting the wire.
type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendTo(id uint64, body []byte) error {
	return f.record(fmt.Sprintf("to %d: %s", id, body))
}

func (f *fakeSender) SendToAll(body []byte) error {
	return f.record(fmt.Sprintf("all: %s", body))
}

func (f *fakeSender) SendToAllExcept(id uint64, body []byte) error {
	return f.record(fmt.Sprintf("all except %d: %s", id, body))
}

func (f *fakeSender) record(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, line)
	return nil
}

func (f *fakeSender) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent := make([]string, len(f.sent))
	copy(sent, f.sent)
	return sent
}

func (f *fakeSender) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

var _ = Describe("Server", func() {
	var (
		sender *fakeSender
		server *chat.Server
	)

	BeforeEach(func() {
		sender = &fakeSender{}
		server = chat.NewServer(sender, zap.NewNop())
	})

	It("announces new clients to everyone else", func() {
		server.OnConnect(0, true)

		Expect(sender.Sent()).To(Equal([]string{
			"all except 0: server: New client connected with id 0.",
		}))
	})

	It("announces disconnects by name", func() {
		server.OnConnect(0, true)
		sender.Reset()

		server.OnConnect(0, false)

		Expect(sender.Sent()).To(Equal([]string{
			"all: server: Client0 has disconnected.",
		}))
	})

	It("ignores a disconnect for an unknown id", func() {
		server.OnConnect(5, false)
		Expect(sender.Sent()).To(BeEmpty())
	})

	It("rebroadcasts plain messages with the sender's name", func() {
		server.OnConnect(0, true)
		sender.Reset()

		server.OnMessage(0, []byte("hello room"))

		Expect(sender.Sent()).To(Equal([]string{"all: Client0: hello room"}))
	})

	Describe("#name", func() {
		BeforeEach(func() {
			server.OnConnect(0, true)
			server.OnConnect(1, true)
			sender.Reset()
		})

		It("announces a successful rename", func() {
			server.OnMessage(0, []byte("#name alice"))

			Expect(sender.Sent()).To(Equal([]string{
				"all: server: Client0 has changed their name to alice.",
			}))
		})

		It("rejects the empty name", func() {
			server.OnMessage(0, []byte("#name "))

			Expect(sender.Sent()).To(Equal([]string{
				"to 0: server: Cannot change your name to the empty string.",
			}))
		})

		It("rejects an over-long name", func() {
			server.OnMessage(0, []byte("#name "+strings.Repeat("a", chat.MaxNameLength+1)))

			Expect(sender.Sent()).To(Equal([]string{
				fmt.Sprintf("to 0: server: Name cannot exceed %d characters.", chat.MaxNameLength),
			}))
		})

		It("rejects invalid characters", func() {
			server.OnMessage(0, []byte("#name al ice"))

			Expect(sender.Sent()).To(Equal([]string{
				"to 0: server: Names can only contain letters and numbers.",
			}))
		})

		It("rejects a taken name", func() {
			server.OnMessage(0, []byte("#name alice"))
			sender.Reset()

			server.OnMessage(1, []byte("#name alice"))

			Expect(sender.Sent()).To(Equal([]string{
				"to 1: server: Name change declined due to name already in use.",
			}))
		})
	})

	Describe("#msg", func() {
		BeforeEach(func() {
			server.OnConnect(0, true)
			server.OnConnect(1, true)
			server.OnMessage(0, []byte("#name alice"))
			server.OnMessage(1, []byte("#name bob"))
			sender.Reset()
		})

		It("delivers to the target and echoes to the sender", func() {
			server.OnMessage(0, []byte("#msg bob pssst"))

			Expect(sender.Sent()).To(Equal([]string{
				"to 1: alice (to bob): pssst",
				"to 0: alice (to bob): pssst",
			}))
		})

		It("rejects a malformed command", func() {
			server.OnMessage(0, []byte("#msg bob"))

			Expect(sender.Sent()).To(Equal([]string{
				"to 0: server: Command not executed properly. Must be #msg <target-name> <message>.",
			}))
		})

		It("rejects an unknown target", func() {
			server.OnMessage(0, []byte("#msg carol hi"))

			Expect(sender.Sent()).To(Equal([]string{
				"to 0: server: Unable to find a client with the name you specified.",
			}))
		})
	})

	It("lists connected clients on #clients", func() {
		server.OnConnect(0, true)
		server.OnConnect(1, true)
		server.OnMessage(1, []byte("#name bob"))
		sender.Reset()

		server.OnMessage(0, []byte("#clients"))

		Expect(sender.Sent()).To(Equal([]string{"to 0: \nClient0\nbob\n"}))
	})

	It("drops unknown commands silently", func() {
		server.OnConnect(0, true)
		sender.Reset()

		server.OnMessage(0, []byte("#bogus"))

		Expect(sender.Sent()).To(BeEmpty())
	})

	It("ignores messages from unregistered senders", func() {
		server.OnMessage(9, []byte("hello"))
		Expect(sender.Sent()).To(BeEmpty())
	})
})
