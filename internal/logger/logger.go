// Package logger provides leveled logging in text or JSON-lines form.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	}
	return "FATAL"
}

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	mu     sync.Mutex
	level  Level
	json   bool
	out    io.Writer
	logger *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	defaultLogger = newLogger(os.Stderr, ParseLevel(level), strings.ToLower(format) == "json")
}

// SetOutput redirects the default logger, creating it at info level if needed.
func SetOutput(w io.Writer) {
	if defaultLogger == nil {
		defaultLogger = newLogger(w, InfoLevel, false)
		return
	}
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.out = w
	defaultLogger.logger.SetOutput(w)
}

func newLogger(w io.Writer, level Level, asJSON bool) *Logger {
	return &Logger{
		level:  level,
		json:   asJSON,
		out:    w,
		logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
	}
}

type jsonLine struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func (l *Logger) output(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.json {
		line, err := json.Marshal(jsonLine{
			Time:  time.Now().UTC().Format(time.RFC3339Nano),
			Level: strings.ToLower(level.String()),
			Msg:   msg,
		})
		if err == nil {
			_, _ = l.out.Write(append(line, '\n'))
			return
		}
	}
	// depth 3: output -> Debug/Info/... -> caller
	_ = l.logger.Output(3, "["+level.String()+"] "+msg)
}

func enabled(level Level) bool {
	return defaultLogger != nil && defaultLogger.level <= level
}

func Debug(format string, args ...interface{}) {
	if enabled(DebugLevel) {
		defaultLogger.output(DebugLevel, format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if enabled(InfoLevel) {
		defaultLogger.output(InfoLevel, format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if enabled(WarnLevel) {
		defaultLogger.output(WarnLevel, format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if enabled(ErrorLevel) {
		defaultLogger.output(ErrorLevel, format, args...)
	}
}

func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.output(ErrorLevel+1, format, args...)
	} else {
		log.Printf("[FATAL] "+format, args...)
	}
	os.Exit(1)
}
