package slate

import (
	"io"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

// The engine logger. Quiet by default so library consumers opt in; the CLI
// host replaces it with its own configured logger.
var (
	logMu  sync.Mutex
	logger = charmlog.NewWithOptions(io.Discard, charmlog.Options{Prefix: "slate"})
)

// SetLogger replaces the engine logger.
func SetLogger(l *charmlog.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

func log() *charmlog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return logger
}
