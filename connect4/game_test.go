package connect4

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// setBoard fills a game's board from one string per row, top row first.
// ' ' is empty, 'x' player 1, 'o' player 2.
func setBoard(g *Game, rows [Rows]string) {
	for r := 0; r < Rows; r++ {
		Expect(rows[r]).To(HaveLen(Cols))
		for c := 0; c < Cols; c++ {
			switch rows[r][c] {
			case 'x':
				g.board[r][c] = X
			case 'o':
				g.board[r][c] = O
			default:
				g.board[r][c] = Empty
			}
		}
	}
}

var _ = Describe("Game", func() {
	It("starts with player 1 to move", func() {
		g := NewGame(10, 20)

		Expect(g.Turn()).To(Equal(1))
		Expect(g.Players()).To(Equal([2]uint64{10, 20}))

		num, ok := g.PlayerNumber(20)
		Expect(ok).To(BeTrue())
		Expect(num).To(Equal(2))

		opponent, ok := g.Opponent(10)
		Expect(ok).To(BeTrue())
		Expect(opponent).To(Equal(uint64(20)))

		_, ok = g.PlayerNumber(30)
		Expect(ok).To(BeFalse())
	})

	It("drops pieces onto the lowest empty row and alternates turns", func() {
		g := NewGame(1, 2)

		result, err := g.Move(1, 3)
		Expect(err).To(Succeed())
		Expect(result.Row).To(Equal(Rows - 1))
		Expect(result.NextTurn).To(Equal(2))
		Expect(g.Turn()).To(Equal(2))

		result, err = g.Move(2, 3)
		Expect(err).To(Succeed())
		Expect(result.Row).To(Equal(Rows - 2))
		Expect(result.NextTurn).To(Equal(1))
	})

	It("rejects a move out of turn", func() {
		g := NewGame(1, 2)

		_, err := g.Move(2, 0)
		Expect(err).To(MatchError(ErrNotYourTurn))
	})

	It("rejects a column outside the board", func() {
		g := NewGame(1, 2)

		_, err := g.Move(1, -1)
		Expect(err).To(MatchError(ErrOutOfBounds))

		_, err = g.Move(1, Cols)
		Expect(err).To(MatchError(ErrOutOfBounds))
	})

	It("rejects a move into a full column", func() {
		g := NewGame(1, 2)

		turn := 1
		for i := 0; i < Rows; i++ {
			_, err := g.Move(turn, 5)
			Expect(err).To(Succeed())
			turn = 3 - turn
		}

		_, err := g.Move(turn, 5)
		Expect(err).To(MatchError(ErrColumnFull))
	})

	It("detects a vertical win", func() {
		g := NewGame(1, 2)

		// p1 stacks column 0, p2 stacks column 1.
		moves := []struct{ player, col int }{
			{1, 0}, {2, 1}, {1, 0}, {2, 1}, {1, 0}, {2, 1},
		}
		for _, m := range moves {
			result, err := g.Move(m.player, m.col)
			Expect(err).To(Succeed())
			Expect(result.Won).To(BeFalse())
		}

		result, err := g.Move(1, 0)
		Expect(err).To(Succeed())
		Expect(result.Won).To(BeTrue())
		Expect(g.Turn()).To(Equal(0))

		_, err = g.Move(2, 1)
		Expect(err).To(MatchError(ErrGameOver))
	})

	It("detects a horizontal win", func() {
		g := NewGame(1, 2)
		setBoard(g, [Rows]string{
			"       ",
			"       ",
			"       ",
			"       ",
			"ooo    ",
			"xxx    ",
		})

		result, err := g.Move(1, 3)
		Expect(err).To(Succeed())
		Expect(result.Row).To(Equal(5))
		Expect(result.Won).To(BeTrue())
	})

	It("detects a down-right diagonal win", func() {
		g := NewGame(1, 2)
		setBoard(g, [Rows]string{
			"       ",
			"       ",
			"x      ",
			"ox     ",
			"oox    ",
			"ooo    ",
		})

		// Column 3 is empty, so the piece lands on the bottom row and
		// completes the diagonal from (2,0) to (5,3).
		result, err := g.Move(1, 3)
		Expect(err).To(Succeed())
		Expect(result.Row).To(Equal(5))
		Expect(result.Won).To(BeTrue())
	})

	It("detects an up-right diagonal win", func() {
		g := NewGame(1, 2)
		setBoard(g, [Rows]string{
			"       ",
			"       ",
			"       ",
			"  xo   ",
			" xoo   ",
			"xooo   ",
		})

		// Column 3 holds three pieces, so the drop lands at (2,3) and
		// completes the diagonal from (5,0) to (2,3).
		result, err := g.Move(1, 3)
		Expect(err).To(Succeed())
		Expect(result.Row).To(Equal(2))
		Expect(result.Won).To(BeTrue())
	})

	It("detects a draw when the last cell fills without a win", func() {
		g := NewGame(1, 2)
		setBoard(g, [Rows]string{
			"xoxoxo ",
			"xoxoxoo",
			"oxoxoxo",
			"oxoxoxo",
			"xoxoxox",
			"xoxoxox",
		})

		result, err := g.Move(1, 6)
		Expect(err).To(Succeed())
		Expect(result.Row).To(Equal(0))
		Expect(result.Won).To(BeFalse())
		Expect(result.Draw).To(BeTrue())
		Expect(g.Turn()).To(Equal(0))
	})

	It("encodes the board row-major with x, o and spaces", func() {
		g := NewGame(1, 2)

		_, err := g.Move(1, 0)
		Expect(err).To(Succeed())
		_, err = g.Move(2, 6)
		Expect(err).To(Succeed())

		encoded := g.EncodeBoard()
		Expect(encoded).To(HaveLen(Rows * Cols))
		Expect(encoded[:(Rows-1)*Cols]).To(Equal(strings.Repeat(" ", (Rows-1)*Cols)))
		Expect(encoded[(Rows-1)*Cols:]).To(Equal("x     o"))
	})
})
