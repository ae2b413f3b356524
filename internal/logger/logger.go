// Package logger configures structured logging and crash reporting for wayline.
package logger

import (
	"io"
	"log/slog"
)

// Setup installs a text slog handler writing to w as the default logger.
// The level is Info, or Debug when verbose. The CLI passes stderr so stdout
// stays clean for command output and the MCP stdio transport.
func Setup(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}
