// Package logger provides leveled logging for FilesetFS components.
//
// The logger writes either human-readable text lines or JSON records,
// to stdout, stderr, or a file, depending on configuration. All output
// goes through a single package-level logger so components never need
// to thread a logger instance around.
package logger

import (
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.Mutex
	currentLevel = LevelInfo
	jsonFormat   = false
	logger       = stdlog.New(os.Stdout, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SetLevel sets the minimum level that will be emitted.
// Unrecognized values leave the current level unchanged.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// Configure applies level, format and output destination in one call.
//
// format is "text" or "json". output is "stdout", "stderr", or a file
// path (opened in append mode). Returns an error only if a log file
// cannot be opened.
func Configure(level, format, output string) error {
	SetLevel(level)

	mu.Lock()
	defer mu.Unlock()

	jsonFormat = strings.EqualFold(format, "json")

	switch output {
	case "", "stdout":
		logger = stdlog.New(os.Stdout, "", 0)
	case "stderr":
		logger = stdlog.New(os.Stderr, "", 0)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", output, err)
		}
		logger = stdlog.New(f, "", 0)
	}

	return nil
}

func log(level Level, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()

	if level < currentLevel {
		return
	}

	message := fmt.Sprintf(format, v...)
	if jsonFormat {
		record := map[string]string{
			"time":    time.Now().Format(time.RFC3339),
			"level":   level.String(),
			"message": message,
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			// fall back to text rather than dropping the line
			logger.Printf("[%s] %s", level.String(), message)
			return
		}
		logger.Println(string(encoded))
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	logger.Println(fmt.Sprintf("[%s] [%s] ", timestamp, level.String()) + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
