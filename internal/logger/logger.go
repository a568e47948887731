package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
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

// ParseLevel maps a config string to a level, defaulting to INFO
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes leveled messages to a rotating log file
type Logger struct {
	mu       sync.RWMutex
	level    Level
	writer   *lumberjack.Logger
	debugLog *log.Logger
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
	MaxSizeMB     int
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return Config{
		LogDir:        filepath.Join(homeDir, "Library", "Application Support", "Sheptun", "logs"),
		Level:         INFO,
		RetentionDays: 7,
		MaxSizeMB:     10,
	}
}

// New creates a new logger. Rotation and retention are handled by lumberjack.
func New(config Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:  filepath.Join(config.LogDir, "sheptun.log"),
		MaxSize:   config.MaxSizeMB,
		MaxAge:    config.RetentionDays,
		LocalTime: true,
		Compress:  false,
	}

	return &Logger{
		level:    config.Level,
		writer:   writer,
		debugLog: log.New(writer, "[DEBUG] ", log.LstdFlags),
		infoLog:  log.New(writer, "[INFO] ", log.LstdFlags),
		warnLog:  log.New(writer, "[WARN] ", log.LstdFlags),
		errorLog: log.New(writer, "[ERROR] ", log.LstdFlags),
	}, nil
}

// SetLevel changes the minimum logged level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level <= level
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(DEBUG) {
		l.debugLog.Printf(format, v...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(INFO) {
		l.infoLog.Printf(format, v...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.enabled(WARN) {
		l.warnLog.Printf(format, v...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(ERROR) {
		l.errorLog.Printf(format, v...)
	}
}

// Close flushes and closes the underlying log file
func (l *Logger) Close() error {
	return l.writer.Close()
}
