package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tanno/parley/connect4"
	"github.com/tanno/parley/internal/env"
)

var Connect4ClientCmd = &cobra.Command{
	Use:   "connect4-client",
	Short: "Connect to a Connect-4 game server",
	Long: `Connect to a Connect-4 game server

Usage
	parley connect4-client

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

		c, err := connect4.NewClient(ctx, net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)), os.Stdout, log)
		if err != nil {
			return err
		}
		defer c.Close()

		return c.Run(ctx, os.Stdin)
	},
}
