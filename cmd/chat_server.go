package cmd

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tanno/parley/chat"
	"github.com/tanno/parley/transport"
)

func init() {
	flags := ChatServerCmd.PersistentFlags()

	flags.StringVar(&httpPort, "http-port", "", "The port to listen to HTTP requests on (default from PARLEY_HTTP_PORT, or 7362)")
}

var ChatServerCmd = &cobra.Command{
	Use:   "chat-server",
	Short: "Start up the chatroom server",
	Long: `Start up the chatroom server

Usage
	parley chat-server

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, func(s *transport.Server, router *gin.Engine, log *zap.Logger) transport.Handler {
			app := chat.NewServer(s, log.Named("chat"))

			// Current roster as JSON, for poking at a running server.
			router.GET("/clients", func(c *gin.Context) {
				c.Data(http.StatusOK, "application/json", app.Roster().Snapshot())
			})

			return app
		})
	},
}
