package setuplogger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLVLInfo  = "info"
	logLVLDebug = "debug"
	logLVLWarn  = "warning"
	logLVLError = "error"
)

// New builds the service logger. Records go to stdout and, when logFile is
// set, to a size-rotated file. The returned closer releases that file.
func New(logLVL, logFile string) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: Level(logLVL)})), closer
}

// Level maps a configured level name to slog; unknown names mean info.
func Level(logLVL string) slog.Level {
	switch logLVL {
	case logLVLDebug:
		return slog.LevelDebug
	case logLVLWarn:
		return slog.LevelWarn
	case logLVLError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
