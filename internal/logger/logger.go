// Package logger initializes and configures the global zerolog instance.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds configuration options for the application logger.
type Config struct {
	Level      string `long:"level" env:"LEVEL" description:"Log level (trace, debug, info, warn, error)" default:"info" json:"level"`
	Format     string `long:"format" env:"FORMAT" description:"Log format (text or json)" default:"console" json:"format"`
	Output     string `long:"output" env:"OUTPUT" description:"Log output (stdout, stderr or file path)" default:"stderr" json:"output"`
	MaxSize    int    `long:"max-size" env:"MAX_SIZE" description:"Rotate log file after this many megabytes" default:"50" json:"max_size"`
	MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" description:"Rotated log files to keep" default:"5" json:"max_backups"`
	MaxAge     int    `long:"max-age" env:"MAX_AGE" description:"Days to keep rotated log files" default:"30" json:"max_age"`
	Compress   bool   `long:"compress" env:"COMPRESS" description:"Gzip rotated log files" json:"compress"`
}

// Setup initializes the global logger based on the provided configuration options.
// Stdout and stderr are used as is; any other output is a file rotated by lumberjack.
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = New(cfg, writerFor(cfg))
}

// New builds a logger writing to w in the configured format.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Format == "json" {
		return zerolog.New(w).With().Timestamp().Logger()
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	// Detect colors: only real terminals without NO_COLOR get escapes
	consoleWriter.NoColor = true
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" && isTerminal(f) {
		consoleWriter.NoColor = false
	}

	return zerolog.New(consoleWriter).With().Timestamp().Logger()
}

func writerFor(cfg Config) io.Writer {
	switch cfg.Output {
	case "stdout":
		return os.Stdout
	case "stderr", "":
		return os.Stderr
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}
}

// isTerminal checks if the provided file descriptor refers to a character device (terminal).
func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) != 0
}
