// Package logging centralizes the structured logger used across the
// reconciliation core, playing the role the teacher assigns to its glog
// wrapper: one place to set level and destination, everything else just
// calls through.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.Mutex
	log zerolog.Logger
)

func init() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// Init sets the process-wide logger's level and output; call once at
// startup after config is loaded. level is one of zerolog's level names
// (debug, info, warn, error).
func Init(level string, out io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if out == nil {
		out = os.Stderr
	}
	log = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Logger returns the process-wide logger.
func Logger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return &log
}

// ForLattice returns a logger with the lattice id bound as a field, the way
// per-request/per-target loggers are derived elsewhere in the stack.
func ForLattice(latticeID string) zerolog.Logger {
	return Logger().With().Str("lattice_id", latticeID).Logger()
}

// ForScaler returns a logger scoped to one manifest's one scaler, used
// throughout the scaler/backoff packages so every line is traceable to the
// owning manifest without threading a context object everywhere.
func ForScaler(latticeID, manifestName, scalerID string) zerolog.Logger {
	return Logger().With().
		Str("lattice_id", latticeID).
		Str("manifest", manifestName).
		Str("scaler_id", scalerID).
		Logger()
}
