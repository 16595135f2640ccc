package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tanno/parley/connect4"
	"github.com/tanno/parley/transport"
)

func init() {
	flags := Connect4ServerCmd.PersistentFlags()

	flags.StringVar(&httpPort, "http-port", "", "The port to listen to HTTP requests on (default from PARLEY_HTTP_PORT, or 7362)")
}

var Connect4ServerCmd = &cobra.Command{
	Use:   "connect4-server",
	Short: "Start up the Connect-4 game server",
	Long: `Start up the Connect-4 game server

Usage
	parley connect4-server

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, func(s *transport.Server, router *gin.Engine, log *zap.Logger) transport.Handler {
			return connect4.NewServer(s, log.Named("connect4"))
		})
	},
}
