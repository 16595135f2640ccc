package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/tanno/parley/client"
	"github.com/tanno/parley/protocol"
)

// maxInputLength leaves headroom in each frame for the server to prepend
// "<name>: " before rebroadcasting.
const maxInputLength = protocol.MaxBodyLength - MaxNameLength

const help = `#name <name>: Changes your name to <name>.
#exit: Disconnects you from the server.
#clear: Clears the current output.
#msg <client_name> <message>: Sends <message> to <client_name> if a client with that name is currently connected.
#clients: Lists all currently connected clients.`

// Client is the terminal chatroom client. Received messages are printed to
// out as they arrive; Run consumes lines from in until #exit, EOF, or the
// server goes away.
type Client struct {
	conn *client.Conn
	out  io.Writer
	log  *zap.Logger
}

// NewClient dials the chat server. Fails fast if it is unreachable.
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

// Run is the input loop. It blocks until the user exits, input ends, or
// the connection drops.
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
			if exit := c.handleInput(line); exit {
				fmt.Fprintln(c.out, "Exiting.")
				return nil
			}
		}
	}
}

// handleInput processes one submitted line and reports whether the client
// should exit.
func (c *Client) handleInput(line string) bool {
	if len(line) == 0 {
		return false
	}

	if line[0] == '#' {
		switch {
		case line == "#help":
			fmt.Fprintln(c.out, help)
			return false

		case line == "#clear":
			// ANSI clear screen plus cursor home.
			fmt.Fprint(c.out, "\033[2J\033[H")
			return false

		case line == "#exit":
			return true

		case strings.HasPrefix(line, "#name "),
			strings.HasPrefix(line, "#msg "),
			line == "#clients":
			c.send(line)
			return false

		default:
			fmt.Fprintf(c.out, "Command %q not recognized.\n", line)
			return false
		}
	}

	c.send(line)
	return false
}

func (c *Client) send(line string) {
	if len(line) > maxInputLength {
		line = line[:maxInputLength]
	}

	if err := c.conn.Send([]byte(line)); err != nil {
		c.log.Warn("Send failed", zap.Error(err))
	}
}

// handleMessage prints every server frame as one chat line.
func (c *Client) handleMessage(body []byte) {
	fmt.Fprintf(c.out, "%s\n", body)
}
