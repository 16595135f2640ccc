package connect4

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Sender is the slice of the transport server the game logic needs. The
// real implementation is *transport.Server; tests substitute a recorder.
type Sender interface {
	SendTo(id uint64, body []byte) error
	SendToAll(body []byte) error
	SendToAllExcept(id uint64, body []byte) error
}

// player is one connected client and whether it is currently in a match.
type player struct {
	id     uint64
	inGame bool
}

// Server is the Connect-4 matchmaking and rules logic, implemented as a
// transport.Handler.
//
// A connecting client is paired with any waiting player, or queued. Wire
// traffic from clients is either a one-digit column move or an opponent
// chat message (#msg <text>). The server pushes:
//
//	#start <playerNum> <rows> <cols>   a match has begun
//	#turn <playerNum> <board>          board state, next to move
//	#win <playerNum> <board>           board state, match won
//	#draw <board>                      board state, match drawn
//	#msg <playerNum> <text>            relayed opponent chat
//	#msg s <text>                      server notice
//	#endgame                           opponent left, match abandoned
type Server struct {
	sender Sender
	log    *zap.Logger

	mu      sync.Mutex
	players []*player
	games   []*Game
}

// NewServer returns game logic bound to a sender.
func NewServer(sender Sender, log *zap.Logger) *Server {
	return &Server{
		sender: sender,
		log:    log,
	}
}

// OnConnect pairs or queues a connecting client, and cleans up after a
// disconnecting one.
func (s *Server) OnConnect(id uint64, connected bool) {
	if connected {
		s.admit(id)
		return
	}
	s.depart(id)
}

func (s *Server) admit(id uint64) {
	s.mu.Lock()
	newPlayer := &player{id: id}
	s.players = append(s.players, newPlayer)
	opponent := s.matchLocked(newPlayer)
	s.mu.Unlock()

	if opponent == nil {
		s.log.Info("Client connected, no opponent available", zap.Uint64("id", id))
		s.notice(id, "No players available to start a new game. You will be put in a game when a new player joins.")
		return
	}

	s.log.Info("Client connected, starting game",
		zap.Uint64("id", id), zap.Uint64("opponent", opponent.id))
}

func (s *Server) depart(id uint64) {
	s.mu.Lock()

	var departing *player
	for i, p := range s.players {
		if p.id == id {
			departing = p
			s.players = append(s.players[:i], s.players[i+1:]...)
			break
		}
	}

	if departing == nil {
		s.mu.Unlock()
		return
	}

	var opponent *player
	if departing.inGame {
		for i, g := range s.games {
			if num, ok := g.PlayerNumber(id); ok {
				otherID := g.players[num%2]
				for _, p := range s.players {
					if p.id == otherID {
						opponent = p
						break
					}
				}
				s.games = append(s.games[:i], s.games[i+1:]...)
				break
			}
		}
	}

	if opponent != nil {
		opponent.inGame = false
	}
	s.mu.Unlock()

	s.log.Info("Player disconnected", zap.Uint64("id", id))

	if opponent == nil {
		return
	}

	// #endgame must reach the survivor before any #start for a replacement
	// match, so the rematch happens only after these are queued.
	s.send(opponent.id, "#endgame")
	s.notice(opponent.id, "Your opponent has disconnected so you have been put back in queue to wait for a new opponent.")

	s.mu.Lock()
	var rematch *player
	for _, p := range s.players {
		// The survivor may itself have departed in the meantime.
		if p == opponent {
			rematch = s.matchLocked(opponent)
			break
		}
	}
	s.mu.Unlock()

	if rematch != nil {
		s.log.Info("Starting replacement game",
			zap.Uint64("id", opponent.id), zap.Uint64("opponent", rematch.id))
	}
}

// matchLocked pairs p with any other waiting player, creates the game, and
// sends the start frames. Returns the opponent, or nil when nobody is
// waiting. Callers must hold mu; the start frames are only enqueued, never
// written, under the lock.
func (s *Server) matchLocked(p *player) *player {
	if p.inGame {
		return nil
	}

	for _, other := range s.players {
		if other == p || other.inGame {
			continue
		}

		p.inGame = true
		other.inGame = true

		game := NewGame(other.id, p.id)
		s.games = append(s.games, game)

		s.send(other.id, fmt.Sprintf("#start 1 %d %d", Rows, Cols))
		s.send(p.id, fmt.Sprintf("#start 2 %d %d", Rows, Cols))
		s.notice(other.id, "Your game has begun.")
		s.notice(p.id, "Your game has begun.")

		return other
	}

	return nil
}

// OnMessage routes one client frame: opponent chat or a move.
func (s *Server) OnMessage(sender uint64, body []byte) {
	s.mu.Lock()
	var game *Game
	for _, p := range s.players {
		if p.id == sender {
			if p.inGame {
				game = s.findGameLocked(sender)
			}
			break
		}
	}
	s.mu.Unlock()

	if game == nil {
		// Not in a match right now; nothing to do with the frame.
		return
	}

	text := string(body)
	playerNum, _ := game.PlayerNumber(sender)
	opponentID, _ := game.Opponent(sender)

	if len(text) > 5 && text[:5] == "#msg " {
		relay := fmt.Sprintf("#msg %d %s", playerNum, text[5:])
		s.send(opponentID, relay)
		s.send(sender, relay)
		return
	}

	if len(text) > 0 && text[0] >= '0' && text[0] <= '9' {
		s.handleMove(game, sender, opponentID, playerNum, int(text[0]-'0'))
	}
}

func (s *Server) findGameLocked(id uint64) *Game {
	for _, g := range s.games {
		if _, ok := g.PlayerNumber(id); ok {
			return g
		}
	}
	return nil
}

func (s *Server) handleMove(game *Game, sender, opponentID uint64, playerNum, col int) {
	s.mu.Lock()
	result, err := game.Move(playerNum, col)
	s.mu.Unlock()

	switch err {
	case nil:

	case ErrNotYourTurn, ErrGameOver:
		s.log.Info("Move rejected, not player's turn", zap.Uint64("id", sender))
		s.notice(sender, "It is not your turn to make a move.")
		return

	case ErrOutOfBounds:
		s.log.Info("Move rejected, out of bounds", zap.Uint64("id", sender))
		s.notice(sender, "The move you have chosen is out of bounds.")
		return

	case ErrColumnFull:
		s.log.Info("Move rejected, column full", zap.Uint64("id", sender))
		s.notice(sender, "The column you have chosen is already full.")
		return

	default:
		s.log.Warn("Move failed", zap.Uint64("id", sender), zap.Error(err))
		return
	}

	var update string
	switch {
	case result.Won:
		update = fmt.Sprintf("#win %d %s", playerNum, game.EncodeBoard())
	case result.Draw:
		update = fmt.Sprintf("#draw %s", game.EncodeBoard())
	default:
		update = fmt.Sprintf("#turn %d %s", result.NextTurn, game.EncodeBoard())
	}

	s.send(sender, update)
	s.send(opponentID, update)

	s.log.Info("Move processed",
		zap.Uint64("id", sender),
		zap.Int("column", col),
		zap.Bool("won", result.Won),
		zap.Bool("draw", result.Draw))
}

// notice sends a server chat line to one player.
func (s *Server) notice(id uint64, text string) {
	s.send(id, "#msg s "+text)
}

func (s *Server) send(id uint64, text string) {
	if err := s.sender.SendTo(id, []byte(text)); err != nil {
		s.log.Warn("Send failed", zap.Uint64("target", id), zap.Error(err))
	}
}
