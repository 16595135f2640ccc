package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tanno/parley/internal/env"
	"github.com/tanno/parley/transport"
)

// runServer is the shared scaffolding for both server subcommands: config,
// logging, the debug HTTP endpoint, the transport server, and graceful
// shutdown on interrupt. makeHandler builds the application logic on top of
// the transport server, and may register extra debug routes.
func runServer(cmd *cobra.Command, makeHandler func(s *transport.Server, router *gin.Engine, log *zap.Logger) transport.Handler) error {
	ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer signalStop()

	log, err := env.MakeLogger()
	if err != nil {
		return err
	}

	fileLimit, err := setFileLimit()
	if err != nil {
		return err
	}

	log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return err
	}
	applyFlags(cmd, conf)

	router := setupRouter(conf.DebugHTTP, log)

	// Ping test
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(conf.Host, conf.HTTPPort),
		Handler: router,
	}

	// Initializing the server in a goroutine so that
	// it won't block the graceful shutdown handling below
	go func() {
		if herr := httpServer.ListenAndServe(); herr != nil && !errors.Is(herr, http.ErrServerClosed) {
			log.Error("Http server errored", zap.Error(herr))
		}
	}()

	server := transport.NewServer(transport.Options{
		Host:      conf.Host,
		Port:      conf.Port,
		Reuseport: true,
		Trace:     conf.Trace,
		Log:       log.Named("transport"),
	})
	server.SetHandler(makeHandler(server, router, log))

	if err := server.Start(ctx); err != nil {
		return err
	}

	log.Info("Listening",
		zap.Any("config", conf),
		zap.String("host", conf.Host),
		zap.Int("port", conf.Port),
		zap.String("httpPort", conf.HTTPPort))

	// Listen for the interrupt signal.
	<-ctx.Done()

	// Restore default behavior on the interrupt signal and notify user of shutdown.
	signalStop()
	log.Info("Shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	httpServer.SetKeepAlivesEnabled(false)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Http server forced to shutdown", zap.Error(err))
	}

	if err := server.Close(); err != nil {
		log.Error("TCP server forced to shutdown", zap.Error(err))
	}

	log.Info("Exiting")
	return nil
}

// applyFlags lets command line flags override the environment config.
func applyFlags(cmd *cobra.Command, conf *env.Config) {
	if cmd.Flags().Changed("port") {
		conf.Port = port
	}
	if cmd.Flags().Changed("host") {
		conf.Host = host
	}
	if cmd.Flags().Changed("http-port") {
		conf.HTTPPort = httpPort
	}
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.Ginzap(log, time.RFC3339, true))

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
