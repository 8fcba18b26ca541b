package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
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

// LogEntry is the JSON shape of one emitted line.
type LogEntry struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Logger writes leveled JSON lines through zerolog. Loggers derived with
// WithField share the parent's writer and level.
type Logger struct {
	state  *loggerState
	fields map[string]interface{}
}

type loggerState struct {
	mu    sync.RWMutex
	level Level
	zl    zerolog.Logger
}

var Default = New()

func New() *Logger {
	return &Logger{
		state: &loggerState{
			level: LevelInfo,
			zl:    newZerolog(os.Stdout),
		},
	}
}

func newZerolog(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.SyncWriter(w)).With().Timestamp().Logger()
}

func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.state.mu.Lock()
	l.state.zl = newZerolog(w)
	l.state.mu.Unlock()
	return l
}

func (l *Logger) SetLevel(level Level) *Logger {
	l.state.mu.Lock()
	l.state.level = level
	l.state.mu.Unlock()
	return l
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{state: l.state, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	if level < l.state.level {
		return
	}

	all := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for _, f := range fields {
		for k, v := range f {
			all[k] = v
		}
	}

	event := l.state.zl.Log().Str("level", level.String())
	if len(all) > 0 {
		event = event.Dict("fields", zerolog.Dict().Fields(all))
	}
	event.Msg(msg)
}

func SetDefaultLevel(level Level) {
	Default.SetLevel(level)
}

func Debug(msg string, fields ...map[string]interface{}) {
	Default.Debug(msg, fields...)
}

func Info(msg string, fields ...map[string]interface{}) {
	Default.Info(msg, fields...)
}

func Warn(msg string, fields ...map[string]interface{}) {
	Default.Warn(msg, fields...)
}

func Error(msg string, fields ...map[string]interface{}) {
	Default.Error(msg, fields...)
}
