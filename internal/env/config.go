package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is the environment-driven configuration shared by every parley
// subcommand. Command line flags take precedence over these values.
type Config struct {
	// Host the servers listen on and the clients connect to.
	Host string `env:"PARLEY_HOST,default=127.0.0.1"`

	// Port is the TCP port the framing layer uses on both sides.
	Port int `env:"PARLEY_PORT,default=1234"`

	// HTTPPort is the port the server-side debug HTTP endpoint listens on.
	HTTPPort string `env:"PARLEY_HTTP_PORT,default=7362"`

	// DebugHTTP keeps gin in debug mode and logs every request.
	DebugHTTP bool `env:"PARLEY_DEBUG_HTTP"`

	// Trace logs every received frame body. Local debugging only.
	Trace bool `env:"PARLEY_TRACE"`
}

// LoadConfig reads .env.local (if present) and then the process
// environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
