package koda

import (
	"io"
	"log/slog"
)

// logger is used at the orchestration edges only (pool lifecycle, file I/O
// failures): never on the parse/encode/decode hot path or in the frame codec. It
// defaults to discarding everything; call SetLogger to observe events.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetLogger replaces the package-wide logger used for orchestration events.
// Passing nil restores the default no-op logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	logger = l
}
