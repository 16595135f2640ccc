// Package chat implements the chatroom built on top of the framing layer.
// The server side is a transport.Handler; the client side wraps a client
// endpoint with a line-based terminal loop.
package chat

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sender is the slice of the transport server the chat logic needs. The
// real implementation is *transport.Server; tests substitute a recorder.
type Sender interface {
	SendTo(id uint64, body []byte) error
	SendToAll(body []byte) error
	SendToAllExcept(id uint64, body []byte) error
}

// Server is the chatroom application logic. It reacts to connection
// lifecycle events and client messages, and never touches sockets itself.
//
// Commands recognised from clients:
//
//	#name <name>            change display name
//	#msg <name> <message>   private message
//	#clients                list connected clients
//
// Anything else is rebroadcast to the whole room as "<name>: <message>".
type Server struct {
	sender Sender
	roster *Roster
	log    *zap.Logger
}

// NewServer returns chat logic bound to a sender.
func NewServer(sender Sender, log *zap.Logger) *Server {
	return &Server{
		sender: sender,
		roster: NewRoster(),
		log:    log,
	}
}

// Roster exposes the client roster, e.g. for the debug HTTP endpoint.
func (s *Server) Roster() *Roster {
	return s.roster
}

// OnConnect registers or removes the client and announces it to the room.
func (s *Server) OnConnect(id uint64, connected bool) {
	if connected {
		s.roster.Add(id)
		s.log.Info("New client connected", zap.Uint64("id", id))
		s.sendAllExcept(id, fmt.Sprintf("server: New client connected with id %d.", id))
		return
	}

	name, ok := s.roster.Remove(id)
	if !ok {
		return
	}
	s.log.Info("Client disconnected", zap.Uint64("id", id), zap.String("name", name))
	s.sendAll(fmt.Sprintf("server: %s has disconnected.", name))
}

// OnMessage routes one client frame: a command if it starts with '#',
// otherwise a room message.
func (s *Server) OnMessage(sender uint64, body []byte) {
	text := string(body)

	switch {
	case strings.HasPrefix(text, "#name "):
		s.handleRename(sender, strings.TrimPrefix(text, "#name "))

	case strings.HasPrefix(text, "#msg "):
		s.handlePrivate(sender, strings.TrimPrefix(text, "#msg "))

	case strings.HasPrefix(text, "#clients"):
		s.handleList(sender)

	case bytes.HasPrefix(body, []byte("#")):
		// Unknown commands are dropped; the client side filters most of
		// them before they reach the wire.

	default:
		name, ok := s.roster.NameOf(sender)
		if !ok {
			return
		}
		s.sendAll(fmt.Sprintf("%s: %s", name, text))
	}
}

func (s *Server) handleRename(sender uint64, name string) {
	old, err := s.roster.Rename(sender, name)

	switch err {
	case nil:
		s.log.Info("Client changed name",
			zap.Uint64("id", sender),
			zap.String("old", old),
			zap.String("new", name))
		s.sendAll(fmt.Sprintf("server: %s has changed their name to %s.", old, name))

	case ErrNameEmpty:
		s.sendTo(sender, "server: Cannot change your name to the empty string.")

	case ErrNameTooLong:
		s.sendTo(sender, fmt.Sprintf("server: Name cannot exceed %d characters.", MaxNameLength))

	case ErrNameInvalid:
		s.sendTo(sender, "server: Names can only contain letters and numbers.")

	case ErrNameTaken:
		s.sendTo(sender, "server: Name change declined due to name already in use.")

	default:
		s.log.Warn("Rename failed", zap.Uint64("id", sender), zap.Error(err))
	}
}

func (s *Server) handlePrivate(sender uint64, rest string) {
	target, text, ok := splitTarget(rest)
	if !ok {
		s.sendTo(sender, "server: Command not executed properly. Must be #msg <target-name> <message>.")
		return
	}

	targetID, found := s.roster.IDOf(target)
	if !found {
		s.log.Info("Private message to unknown client",
			zap.Uint64("sender", sender), zap.String("target", target))
		s.sendTo(sender, "server: Unable to find a client with the name you specified.")
		return
	}

	senderName, ok := s.roster.NameOf(sender)
	if !ok {
		return
	}

	reply := fmt.Sprintf("%s (to %s): %s", senderName, target, text)
	s.sendTo(targetID, reply)
	s.sendTo(sender, reply)
}

func (s *Server) handleList(sender uint64) {
	var b strings.Builder
	b.WriteString("\n")
	for _, name := range s.roster.Names() {
		b.WriteString(name)
		b.WriteString("\n")
	}
	s.sendTo(sender, b.String())
}

// splitTarget splits "<name> <message>" and fails on a missing name or a
// missing message.
func splitTarget(rest string) (target, text string, ok bool) {
	i := strings.IndexByte(rest, ' ')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

func (s *Server) sendTo(id uint64, text string) {
	if err := s.sender.SendTo(id, []byte(text)); err != nil {
		s.log.Warn("Send failed", zap.Uint64("target", id), zap.Error(err))
	}
}

func (s *Server) sendAll(text string) {
	if err := s.sender.SendToAll([]byte(text)); err != nil {
		s.log.Warn("Broadcast failed", zap.Error(err))
	}
}

func (s *Server) sendAllExcept(id uint64, text string) {
	if err := s.sender.SendToAllExcept(id, []byte(text)); err != nil {
		s.log.Warn("Broadcast failed", zap.Error(err))
	}
}
