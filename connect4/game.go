// Package connect4 implements the Connect-4 game built on top of the
// framing layer. Game state lives only on the server; clients are sent the
// full board after every move.
package connect4

import "errors"

// Board dimensions. Both must stay single-digit so moves and the #start
// frame fit the one-character encodings.
const (
	Rows = 6
	Cols = 7
)

// Tile is one cell of the board.
type Tile byte

const (
	Empty Tile = iota
	X
	O
)

// Move errors reported back to the player.
var (
	ErrNotYourTurn = errors.New("not your turn")
	ErrOutOfBounds = errors.New("move is out of bounds")
	ErrColumnFull  = errors.New("column is already full")
	ErrGameOver    = errors.New("game is over")
)

// MoveResult describes the state of the game after a legal move.
type MoveResult struct {
	Row      int
	Won      bool
	Draw     bool
	NextTurn int
}

// Game is one match between two players. Player 1 plays X, player 2 plays
// O, player 1 moves first.
type Game struct {
	players [2]uint64
	board   [Rows][Cols]Tile
	turn    int
}

// NewGame pairs two connection IDs into a fresh match.
func NewGame(p1, p2 uint64) *Game {
	return &Game{
		players: [2]uint64{p1, p2},
		turn:    1,
	}
}

// Players returns both connection IDs, player 1 first.
func (g *Game) Players() [2]uint64 {
	return g.players
}

// Turn returns whose move it is: 1 or 2, or 0 once the game is over.
func (g *Game) Turn() int {
	return g.turn
}

// PlayerNumber maps a connection ID to its player number.
func (g *Game) PlayerNumber(id uint64) (int, bool) {
	switch id {
	case g.players[0]:
		return 1, true
	case g.players[1]:
		return 2, true
	}
	return 0, false
}

// Opponent returns the other player's connection ID.
func (g *Game) Opponent(id uint64) (uint64, bool) {
	switch id {
	case g.players[0]:
		return g.players[1], true
	case g.players[1]:
		return g.players[0], true
	}
	return 0, false
}

// Move drops playerNum's piece into col. The piece lands on the lowest
// empty row of that column. A winning or drawing move ends the game.
func (g *Game) Move(playerNum, col int) (MoveResult, error) {
	if g.turn == 0 {
		return MoveResult{}, ErrGameOver
	}
	if playerNum != g.turn {
		return MoveResult{}, ErrNotYourTurn
	}
	if col < 0 || col >= Cols {
		return MoveResult{}, ErrOutOfBounds
	}
	if g.board[0][col] != Empty {
		return MoveResult{}, ErrColumnFull
	}

	tile := X
	if playerNum == 2 {
		tile = O
	}

	row := 0
	for r := Rows - 1; r >= 0; r-- {
		if g.board[r][col] == Empty {
			g.board[r][col] = tile
			row = r
			break
		}
	}

	result := MoveResult{Row: row}

	switch {
	case g.won(tile):
		result.Won = true
		g.turn = 0
	case g.draw():
		result.Draw = true
		g.turn = 0
	default:
		if g.turn == 1 {
			g.turn = 2
		} else {
			g.turn = 1
		}
		result.NextTurn = g.turn
	}

	return result, nil
}

// won reports whether tile has four in a row anywhere on the board.
func (g *Game) won(tile Tile) bool {
	// horizontal
	for r := 0; r < Rows; r++ {
		for c := 0; c+3 < Cols; c++ {
			if g.board[r][c] == tile && g.board[r][c+1] == tile &&
				g.board[r][c+2] == tile && g.board[r][c+3] == tile {
				return true
			}
		}
	}

	// vertical
	for c := 0; c < Cols; c++ {
		for r := 0; r+3 < Rows; r++ {
			if g.board[r][c] == tile && g.board[r+1][c] == tile &&
				g.board[r+2][c] == tile && g.board[r+3][c] == tile {
				return true
			}
		}
	}

	// diagonal down-right
	for r := 0; r+3 < Rows; r++ {
		for c := 0; c+3 < Cols; c++ {
			if g.board[r][c] == tile && g.board[r+1][c+1] == tile &&
				g.board[r+2][c+2] == tile && g.board[r+3][c+3] == tile {
				return true
			}
		}
	}

	// diagonal up-right
	for r := 3; r < Rows; r++ {
		for c := 0; c+3 < Cols; c++ {
			if g.board[r][c] == tile && g.board[r-1][c+1] == tile &&
				g.board[r-2][c+2] == tile && g.board[r-3][c+3] == tile {
				return true
			}
		}
	}

	return false
}

// draw reports a full top row. Only valid once won has been ruled out.
func (g *Game) draw() bool {
	for c := 0; c < Cols; c++ {
		if g.board[0][c] == Empty {
			return false
		}
	}
	return true
}

// EncodeBoard serializes the board as Rows*Cols characters in row-major
// order: ' ' for empty, 'x' for player 1, 'o' for player 2. This is the
// payload of the #turn, #win and #draw frames.
func (g *Game) EncodeBoard() string {
	cells := make([]byte, 0, Rows*Cols)
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			switch g.board[r][c] {
			case X:
				cells = append(cells, 'x')
			case O:
				cells = append(cells, 'o')
			default:
				cells = append(cells, ' ')
			}
		}
	}
	return string(cells)
}
