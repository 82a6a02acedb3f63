package cluster

import (
	"io"
	"log/slog"

	"github.com/hashicorp/go-hclog"
)

// newHCLogger returns the logger Raft writes to. Raft output is forwarded to
// logger at level; "off" or an unknown level silences Raft entirely.
func newHCLogger(logger *slog.Logger, level string) hclog.Logger {
	hcLevel := hclog.LevelFromString(level)
	if logger == nil || hcLevel == hclog.NoLevel || hcLevel == hclog.Off {
		return newNoOpHCLogger()
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hcLevel,
		Output: slog.NewLogLogger(logger.Handler(), slog.LevelInfo).Writer(),
	})
}

// newNoOpHCLogger creates a no-op hclog.Logger for Raft to avoid excessive logging.
func newNoOpHCLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hclog.Off,
		Output: io.Discard,
	})
}
