package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tanno/parley/chat"
	"github.com/tanno/parley/internal/env"
)

var ChatClientCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "Connect to a chatroom server",
	Long: `Connect to a chatroom server

Usage
	parley chat-client

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		log, err := env.MakeClientLogger()
		if err != nil {
			return err
		}

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}
		applyFlags(cmd, conf)

		c, err := chat.NewClient(ctx, net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)), os.Stdout, log)
		if err != nil {
			return err
		}
		defer c.Close()

		return c.Run(ctx, os.Stdin)
	},
}
