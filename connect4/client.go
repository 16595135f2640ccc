package connect4

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tanno/parley/client"
)

const clientHelp = `#msg <message>: Sends <message> to your current opponent.
<number>: To make a game move, submit the number of the column you'd like to drop your piece in.
To close the game, press CTRL+C.`

// Client is the terminal Connect-4 client. The server owns all game state;
// this side just renders the board frames it is sent and forwards input.
type Client struct {
	conn *client.Conn
	out  io.Writer
	log  *zap.Logger

	mu        sync.Mutex
	playerNum int
	rows      int
	cols      int
}

// NewClient dials the game server. Fails fast if it is unreachable.
func NewClient(ctx context.Context, addr string, out io.Writer, log *zap.Logger) (*Client, error) {
	c := &Client{
		out: out,
		log: log,
	}

	conn, err := client.Dial(ctx, addr, c.handleMessage, log)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	return c, nil
}

// Close disconnects from the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run is the input loop. It blocks until input ends, the context is
// cancelled, or the connection drops.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "For a list of available commands, type (and submit) #help.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-c.conn.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.conn.Done():
			fmt.Fprintln(c.out, "Lost connection to server.")
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.handleInput(line)
		}
	}
}

func (c *Client) handleInput(line string) {
	if len(line) == 0 {
		return
	}

	switch {
	case line == "#help":
		fmt.Fprintln(c.out, clientHelp)

	case strings.HasPrefix(line, "#msg "):
		c.send(line)

	case line[0] >= '0' && line[0] <= '9':
		c.send(line)

	case line[0] == '#':
		fmt.Fprintf(c.out, "Command %q not recognized.\n", line)

	default:
		fmt.Fprintln(c.out, "Submit a column number to move, or #msg <message> to talk to your opponent.")
	}
}

func (c *Client) send(line string) {
	if err := c.conn.Send([]byte(line)); err != nil {
		c.log.Warn("Send failed", zap.Error(err))
	}
}

// handleMessage routes one server frame.
func (c *Client) handleMessage(body []byte) {
	text := string(body)

	switch {
	case strings.HasPrefix(text, "#start "):
		c.handleStart(text)

	case strings.HasPrefix(text, "#turn ") && len(text) > 8:
		c.renderBoard(text[8:])
		if c.isMyTurn(int(text[6] - '0')) {
			fmt.Fprintln(c.out, "It is your turn. Pick a column.")
		} else {
			fmt.Fprintln(c.out, "Waiting for your opponent's move.")
		}

	case strings.HasPrefix(text, "#win ") && len(text) > 7:
		c.renderBoard(text[7:])
		if c.isMyTurn(int(text[5] - '0')) {
			fmt.Fprintln(c.out, "You won!")
		} else {
			fmt.Fprintln(c.out, "Your opponent won.")
		}

	case strings.HasPrefix(text, "#draw "):
		c.renderBoard(text[6:])
		fmt.Fprintln(c.out, "The game is a draw.")

	case strings.HasPrefix(text, "#msg s "):
		fmt.Fprintf(c.out, "server: %s\n", text[7:])

	case strings.HasPrefix(text, "#msg ") && len(text) > 7:
		fmt.Fprintf(c.out, "Player %c: %s\n", text[5], text[7:])

	case text == "#endgame":
		c.mu.Lock()
		c.playerNum = 0
		c.mu.Unlock()

	default:
		fmt.Fprintf(c.out, "%s\n", text)
	}
}

// handleStart parses "#start <playerNum> <rows> <cols>".
func (c *Client) handleStart(text string) {
	var num, rows, cols int
	if _, err := fmt.Sscanf(text, "#start %d %d %d", &num, &rows, &cols); err != nil {
		c.log.Warn("Malformed start frame", zap.String("frame", text))
		return
	}

	c.mu.Lock()
	c.playerNum = num
	c.rows = rows
	c.cols = cols
	c.mu.Unlock()

	piece := "X"
	if num == 2 {
		piece = "O"
	}
	fmt.Fprintf(c.out, "You are Player %d (%s).\n", num, piece)
}

func (c *Client) isMyTurn(num int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return num == c.playerNum
}

// renderBoard draws the row-major cell string as an ASCII grid with column
// numbers along the top.
func (c *Client) renderBoard(cells string) {
	c.mu.Lock()
	rows, cols := c.rows, c.cols
	c.mu.Unlock()

	if rows == 0 || cols == 0 || len(cells) < rows*cols {
		c.log.Warn("Board frame before game start", zap.Int("cells", len(cells)))
		return
	}

	var b strings.Builder
	for col := 0; col < cols; col++ {
		fmt.Fprintf(&b, " %d", col)
	}
	b.WriteString("\n")

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			b.WriteByte('|')
			b.WriteByte(cells[row*cols+col])
		}
		b.WriteString("|\n")
	}

	for col := 0; col < cols; col++ {
		b.WriteString("-~")
	}
	b.WriteString("-\n")

	fmt.Fprint(c.out, b.String())
}
