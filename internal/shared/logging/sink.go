package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// LogFileName is the file created under the configured log directory.
const LogFileName = "aipolish.log"

// sink is the process-wide destination shared by every component logger.
// Console output is always on; the file is attached once the data
// directory is known.
type sink struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	level   LogLevel
}

var defaultSink = &sink{console: os.Stderr, level: INFO}

type componentLogger struct {
	component string
	sink      *sink
}

func newComponentLogger(component string) *componentLogger {
	return &componentLogger{component: component, sink: defaultSink}
}

// ConfigureFile attaches <dir>/aipolish.log to the shared sink. It returns the
// resolved log file path. Calling it again replaces the previous file.
func ConfigureFile(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("log directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, LogFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file %s: %w", path, err)
	}

	defaultSink.mu.Lock()
	previous := defaultSink.file
	defaultSink.file = file
	defaultSink.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return path, nil
}

// Close detaches and closes the log file, if any.
func Close() error {
	defaultSink.mu.Lock()
	file := defaultSink.file
	defaultSink.file = nil
	defaultSink.mu.Unlock()
	if file == nil {
		return nil
	}
	return file.Close()
}

// SetConsole redirects console output. A nil writer silences the console.
func SetConsole(w io.Writer) {
	defaultSink.mu.Lock()
	defer defaultSink.mu.Unlock()
	defaultSink.console = w
}

// SetLevel sets the minimum level written by every component logger.
func SetLevel(level LogLevel) {
	defaultSink.mu.Lock()
	defer defaultSink.mu.Unlock()
	defaultSink.level = level
}

// ParseLevel maps a textual level to LogLevel, defaulting to INFO.
func ParseLevel(value string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *componentLogger) log(level LogLevel, format string, args ...any) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2025-09-30 12:34:56 [INFO] [ComponentName] file.go:123 - Message
	component := l.component
	if component == "" {
		component = "AIPOLISH"
	}
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		time.Now().Format("2006-01-02 15:04:05"), levelToString(level), component, file, line,
		fmt.Sprintf(format, args...))

	if s.console != nil {
		_, _ = io.WriteString(s.console, logLine)
	}
	if s.file != nil {
		_, _ = s.file.WriteString(logLine)
	}
}

func (l *componentLogger) Debug(format string, args ...any) {
	l.log(DEBUG, format, args...)
}

func (l *componentLogger) Info(format string, args ...any) {
	l.log(INFO, format, args...)
}

func (l *componentLogger) Warn(format string, args ...any) {
	l.log(WARN, format, args...)
}

func (l *componentLogger) Error(format string, args ...any) {
	l.log(ERROR, format, args...)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
