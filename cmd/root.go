package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tanno/parley/cmd/gen"
)

var (
	// The host the servers listen on and the clients connect to
	host string

	// The port the framing layer uses on both sides
	port int

	// The port the server-side debug HTTP endpoint listens on
	httpPort string
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Length-prefixed TCP messaging with chatroom and Connect-4 demos",
	Long: `Parley is a small length-prefixed message framing layer over TCP,
plus two applications built on it: a chatroom and a Connect-4 game.

Usage
	parley chat-server
	parley chat-client
	parley connect4-server
	parley connect4-client

`,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.IntVarP(&port, "port", "p", 0, "The port the framing layer uses (default from PARLEY_PORT, or 1234)")
	flags.StringVarP(&host, "host", "a", "", "The host to listen on / connect to (default from PARLEY_HOST, or 127.0.0.1)")

	rootCmd.AddCommand(ChatServerCmd)
	rootCmd.AddCommand(ChatClientCmd)
	rootCmd.AddCommand(Connect4ServerCmd)
	rootCmd.AddCommand(Connect4ClientCmd)
	rootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
