package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/osfg-go/framegen/config"
)

// newLogger builds the process-wide logger from [Advanced] Debug/LogFile:
// a JSON handler at debug level when Debug is set, a plain text handler
// at info level otherwise, writing to LogFile if one is configured and
// to stderr when it isn't.
func newLogger(adv config.AdvancedSettings) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}
	if adv.LogFile != "" {
		f, err := os.OpenFile(adv.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("framegen: open log file %s: %w", adv.LogFile, err)
		}
		w = f
		closer = func() { f.Close() }
	}

	var handler slog.Handler
	if adv.Debug {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(handler), closer, nil
}
