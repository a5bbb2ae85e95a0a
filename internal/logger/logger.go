package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"facewatch/internal/config"
)

// Level is a log severity. Every level is written to its own file in the log directory.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

var (
	levelNames    = [...]string{"info", "warning", "error"}
	levelPrefixes = [...]string{"ℹ️  INFO    ", "⚠️  WARNING ", "❌ ERROR   "}
)

func (l Level) String() string {
	return levelNames[l]
}

// FileName is the log file of the level inside the log directory.
func (l Level) FileName() string {
	return levelNames[l] + ".log"
}

// ParseLevel maps "info", "warning" or "error" to a Level. An empty string is info.
func ParseLevel(s string) (Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelInfo, true
	}
	for i, name := range levelNames {
		if s == name {
			return Level(i), true
		}
	}
	return LevelInfo, false
}

// Logger provides leveled printf-style logging to per-level files and stdout/stderr.
type Logger struct {
	loggers [len(levelNames)]*log.Logger
	files   []*os.File
	min     Level
	logDir  string
	mu      sync.Mutex
}

// NewLogger creates the log directory and opens one append-only file per level.
func NewLogger(cfg *config.Config) (*Logger, error) {
	min, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{min: min, logDir: cfg.LogDirectory}
	for lvl := LevelInfo; lvl <= LevelError; lvl++ {
		file, err := os.OpenFile(l.Path(lvl), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", lvl.FileName(), err)
		}
		l.files = append(l.files, file)

		var console io.Writer = os.Stdout
		if lvl == LevelError {
			console = os.Stderr
		}
		l.loggers[lvl] = log.New(io.MultiWriter(console, file), levelPrefixes[lvl], log.Ldate|log.Ltime|log.Lshortfile)
	}
	return l, nil
}

// NewDiscard returns a Logger that drops every entry.
func NewDiscard() *Logger {
	l := &Logger{}
	for i := range l.loggers {
		l.loggers[i] = log.New(io.Discard, "", 0)
	}
	return l
}

// NewConsole logs warnings and errors to stderr only, without log files.
func NewConsole() *Logger {
	l := &Logger{min: LevelWarning}
	for i := range l.loggers {
		l.loggers[i] = log.New(os.Stderr, levelPrefixes[i], log.Ltime)
	}
	return l
}

func (l *Logger) output(lvl Level, format string, v []interface{}) {
	if lvl < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loggers[lvl].Output(3, fmt.Sprintf(format, v...))
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(LevelInfo, format, v)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(LevelWarning, format, v)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(LevelError, format, v)
}

// Path returns the file of a level. It is empty for loggers without a log directory.
func (l *Logger) Path(lvl Level) string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, lvl.FileName())
}

// CleanLogs truncates the file of a level.
func (l *Logger) CleanLogs(lvl Level) error {
	path := l.Path(lvl)
	if path == "" {
		return nil
	}

	l.mu.Lock()
	err := os.Truncate(path, 0)
	l.mu.Unlock()
	if err != nil {
		l.Error("Error clearing %s: %v", lvl.FileName(), err)
		return err
	}

	l.Info("Log file %s has been cleared.", lvl.FileName())
	return nil
}

// Close closes the log files. Entries logged afterwards only reach the console.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	return errors.Join(errs...)
}
