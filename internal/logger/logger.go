// Package logger writes structured JSON lines: one entry per action, with
// optional user, details, error and caller.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     Level                  `json:"level"`
	UserID    string                 `json:"user_id,omitempty"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

var colors = map[Level]string{
	LevelInfo:  "\033[36m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
}

const colorReset = "\033[0m"

type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	now   func() time.Time
}

// New creates a Logger writing to out. Entries are colorized only when out
// is a terminal.
func New(out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{out: out, color: isTerminal(out), now: time.Now}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// Init installs the process-wide logger. A nil writer means stderr; use io.Discard to silence it.
func Init(out io.Writer) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = New(out)
}

// Log writes one entry. skip counts the frames between the caller of interest and Log.
func (l *Logger) Log(skip int, level Level, userID, action string, details map[string]interface{}, err error) {
	entry := Entry{
		Timestamp: l.now().UTC(),
		Level:     level,
		UserID:    userID,
		Action:    action,
		Details:   details,
		Caller:    caller(skip + 1),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	data, mErr := json.Marshal(entry)
	if mErr != nil {
		data, _ = json.Marshal(Entry{Timestamp: entry.Timestamp, Level: level, Action: action, Error: mErr.Error()})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.color {
		fmt.Fprintf(l.out, "%s%s%s\n", colors[level], data, colorReset)
		return
	}
	fmt.Fprintf(l.out, "%s\n", data)
}

func emit(level Level, userID, action string, details map[string]interface{}, err error) {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		l.Log(2, level, userID, action, details, err)
	}
}

func Info(action string, details map[string]interface{}) {
	emit(LevelInfo, "", action, details, nil)
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	emit(LevelInfo, userID, action, details, nil)
}

func Warn(action string, details map[string]interface{}) {
	emit(LevelWarn, "", action, details, nil)
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	emit(LevelWarn, userID, action, details, nil)
}

func Error(action string, err error, details map[string]interface{}) {
	emit(LevelError, "", action, details, err)
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	emit(LevelError, userID, action, details, err)
}

func caller(skip int) string {
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

var sensitiveFields = []string{"password", "passwordHash", "oldPassword", "newPassword", "secret", "token"}

// Redact replaces sensitive values in fields, including nested objects.
func Redact(fields map[string]interface{}) {
	for _, name := range sensitiveFields {
		if _, ok := fields[name]; ok {
			fields[name] = "[REDACTED]"
		}
	}
	for _, v := range fields {
		if nested, ok := v.(map[string]interface{}); ok {
			Redact(nested)
		}
	}
}
