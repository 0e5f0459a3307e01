// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger at level writing to out. When ring is not
// nil every line is also kept there for the on-screen debug panel.
func New(level string, out io.Writer, ring *Ring) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var w io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	if ring != nil {
		w = zerolog.MultiLevelWriter(w, zerolog.ConsoleWriter{
			Out:          ring,
			NoColor:      true,
			PartsExclude: []string{zerolog.TimestampFieldName},
		})
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
