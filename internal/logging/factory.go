package logging

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
)

const (
	FormatJSON = "json"
	FormatText = "text"
	FormatZap  = "zap"
)

// New builds the process logger for the given format. Unknown formats are an
// error so a typo in config does not silently fall back.
func New(format string) (Logger, error) {
	switch format {
	case "", FormatJSON:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))), nil
	case FormatText:
		return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil))), nil
	case FormatZap:
		zl, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("zap init error: %w", err)
		}
		return NewZapLogger(zl), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
