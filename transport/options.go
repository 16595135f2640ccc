package transport

import (
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	// Host to listen on
	Host string

	// Port to listen on. 0 picks an ephemeral port; read it back with
	// Server.Addr after Start.
	Port int

	// Reuseport controls setting SO_REUSEPORT on the listener.
	Reuseport bool

	// Trace will log every received frame body. Only useful in local
	// debugging.
	Trace bool

	// Handler receives connect/disconnect and message callbacks.
	Handler Handler

	Log *zap.Logger
}
