package env

import (
	zap "go.uber.org/zap"
)

// MakeLogger builds the production JSON logger used by the server
// subcommands.
func MakeLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logConfig.Encoding = "json"

	return logConfig.Build()
}

// MakeClientLogger builds a quieter logger for the terminal clients. It
// writes to stderr at warn level so log lines don't interleave with the
// chat output on stdout.
func MakeClientLogger() (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logConfig.Encoding = "console"
	logConfig.OutputPaths = []string{"stderr"}

	return logConfig.Build()
}
