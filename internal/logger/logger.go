package logger

import (
	"log"
	"os"
)

// Logger is the xrefstore logging contract.
// Implementations should support standard log levels and be safe for
// concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// StdLogger wraps Go's standard logger to implement the logging contract.
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// NewStdLogger creates a new StdLogger writing to stderr.
func NewStdLogger() *StdLogger {
	return &StdLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags),
	}
}

// SetDebug toggles whether Debug messages are emitted.
func (l *StdLogger) SetDebug(on bool) {
	l.debug = on
}

func (l *StdLogger) Info(msg string, args ...any) {
	l.logger.Printf("[INFO] "+msg, args...)
}

func (l *StdLogger) Warn(msg string, args ...any) {
	l.logger.Printf("[WARN] "+msg, args...)
}

func (l *StdLogger) Error(msg string, args ...any) {
	l.logger.Printf("[ERROR] "+msg, args...)
}

func (l *StdLogger) Debug(msg string, args ...any) {
	if !l.debug {
		return
	}
	l.logger.Printf("[DEBUG] "+msg, args...)
}

// Default provides a global default logger instance.
var Default = NewStdLogger()
