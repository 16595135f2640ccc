package chat_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/tanno/parley/chat"
)

var _ = Describe("Roster", func() {
	var roster *chat.Roster

	BeforeEach(func() {
		roster = chat.NewRoster()
	})

	It("assigns default names from the connection id", func() {
		Expect(roster.Add(0)).To(Equal("Client0"))
		Expect(roster.Add(7)).To(Equal("Client7"))

		name, ok := roster.NameOf(7)
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal("Client7"))
	})

	Describe("Rename", func() {
		BeforeEach(func() {
			roster.Add(0)
			roster.Add(1)
		})

		It("applies a valid name and returns the previous one", func() {
			old, err := roster.Rename(0, "alice")
			Expect(err).To(Succeed())
			Expect(old).To(Equal("Client0"))

			name, _ := roster.NameOf(0)
			Expect(name).To(Equal("alice"))
		})

		It("rejects the empty name", func() {
			_, err := roster.Rename(0, "")
			Expect(err).To(MatchError(chat.ErrNameEmpty))
		})

		It("rejects names over the length limit", func() {
			_, err := roster.Rename(0, strings.Repeat("a", chat.MaxNameLength+1))
			Expect(err).To(MatchError(chat.ErrNameTooLong))

			_, err = roster.Rename(0, strings.Repeat("a", chat.MaxNameLength))
			Expect(err).To(Succeed())
		})

		It("rejects non-alphanumeric names", func() {
			for _, name := range []string{"al ice", "a-b", "bob!", "#bob"} {
				_, err := roster.Rename(0, name)
				Expect(err).To(MatchError(chat.ErrNameInvalid))
			}
		})

		It("rejects a name already in use", func() {
			_, err := roster.Rename(0, "alice")
			Expect(err).To(Succeed())

			_, err = roster.Rename(1, "alice")
			Expect(err).To(MatchError(chat.ErrNameTaken))
		})

		It("rejects taking over a default name", func() {
			_, err := roster.Rename(0, "Client1")
			Expect(err).To(MatchError(chat.ErrNameTaken))
		})

		It("rejects an unknown client", func() {
			_, err := roster.Rename(99, "alice")
			Expect(err).To(MatchError(chat.ErrUnknownClient))
		})
	})

	Describe("Remove", func() {
		It("returns the removed name", func() {
			roster.Add(3)
			_, err := roster.Rename(3, "carol")
			Expect(err).To(Succeed())

			name, ok := roster.Remove(3)
			Expect(ok).To(BeTrue())
			Expect(name).To(Equal("carol"))

			_, ok = roster.NameOf(3)
			Expect(ok).To(BeFalse())
		})

		It("reports an unknown id", func() {
			_, ok := roster.Remove(12)
			Expect(ok).To(BeFalse())
		})
	})

	It("resolves a name back to its id", func() {
		roster.Add(0)
		roster.Add(5)
		_, err := roster.Rename(5, "eve")
		Expect(err).To(Succeed())

		id, ok := roster.IDOf("eve")
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(uint64(5)))

		_, ok = roster.IDOf("nobody")
		Expect(ok).To(BeFalse())
	})

	It("lists names in id order", func() {
		roster.Add(0)
		roster.Add(1)
		roster.Add(2)
		_, err := roster.Rename(1, "bob")
		Expect(err).To(Succeed())

		Expect(roster.Names()).To(Equal([]string{"Client0", "bob", "Client2"}))
	})

	It("snapshots the roster as JSON", func() {
		roster.Add(0)
		Expect(string(roster.Snapshot())).To(MatchJSON(`{"0": "Client0"}`))
	})
})
