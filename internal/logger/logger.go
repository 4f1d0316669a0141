package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// output is the writer shared by the global and component loggers
	output io.Writer = os.Stdout
)

// Initialize sets up the global logger. format "json" writes raw JSON lines for log shippers,
// anything else writes the human readable console format.
func Initialize(logLevel string, format ...string) {
	zerolog.TimeFieldFormat = time.RFC3339

	output = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}
	if len(format) > 0 && strings.EqualFold(format[0], "json") {
		output = os.Stdout
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()

	zerolog.SetGlobalLevel(ParseLevel(logLevel))

	// Replace standard log with zerolog
	log.Logger = Logger
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, defaulting to info.
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetForComponent returns a logger with a component field for better filtering.
// Component loggers are created at package init, before Initialize runs, so they
// write through globalWriter to pick up the configured output.
func GetForComponent(component string) zerolog.Logger {
	return zerolog.New(globalWriter{}).With().Timestamp().Caller().Str("component", component).Logger()
}

type globalWriter struct{}

func (globalWriter) Write(p []byte) (int, error) {
	return output.Write(p)
}

// FileWriter returns a writer to a log file for optional use alongside console logging
func FileWriter(path string) (io.Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// AttachFile copies every log line, as JSON, into the file at path. Call it after Initialize.
func AttachFile(path string) error {
	file, err := FileWriter(path)
	if err != nil {
		return err
	}
	output = zerolog.MultiLevelWriter(output, file)
	Logger = Logger.Output(output)
	log.Logger = Logger
	return nil
}
