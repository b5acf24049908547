// Package logger builds the application's structured logger
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/amirphl/campaign-dispatcher/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps the root zerolog logger together with the rotating file it may own
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New creates the root logger from cfg. File output rotates through lumberjack.
func New(cfg config.LoggingConfig, deployment config.DeploymentConfig) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorFieldName = "error"

	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)

	if cfg.Output == "file" || cfg.Output == "both" {
		file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, file)
	}
	if cfg.Output != "file" {
		writers = append(writers, stdoutWriter(cfg.Format))
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "campaign-dispatcher").
		Str("env", deployment.Environment).
		Str("version", deployment.Version)
	if cfg.EnableCaller {
		ctx = ctx.Caller()
	}

	return &Logger{Logger: ctx.Logger(), file: file}
}

// Close flushes and closes the log file when one is in use
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a configured level name to zerolog, defaulting to info
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func stdoutWriter(format string) io.Writer {
	if format == "console" {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return os.Stdout
}
