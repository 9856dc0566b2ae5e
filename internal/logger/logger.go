// Package logger is a small leveled logger on top of the standard log
// package. Levels are off, normal (info/warn/error) and verbose (adds debug).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

type Level int

const (
	LevelOff Level = iota
	LevelNormal
	LevelVerbose
)

// ParseLevel maps "off", "normal"/"info" and "verbose"/"debug" to a Level.
// Anything else is LevelNormal.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "quiet", "none":
		return LevelOff
	case "verbose", "debug":
		return LevelVerbose
	default:
		return LevelNormal
	}
}

// Logger is safe for concurrent use.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	debug  *log.Logger
	info   *log.Logger
	warn   *log.Logger
	errLog *log.Logger
}

// New creates a logger writing to out, or os.Stderr when out is nil.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	flags := log.LstdFlags
	return &Logger{
		level:  level,
		debug:  log.New(out, "[DBG] ", flags),
		info:   log.New(out, "[INF] ", flags),
		warn:   log.New(out, "[WRN] ", flags),
		errLog: log.New(out, "[ERR] ", flags),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger { return New(LevelOff, io.Discard) }

func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) Level() Level {
	if l == nil {
		return LevelOff
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

type channel int

const (
	chanDebug channel = iota
	chanInfo
	chanWarn
	chanError
)

func (l *Logger) Debug(format string, args ...any) { l.output(chanDebug, format, args) }
func (l *Logger) Info(format string, args ...any)  { l.output(chanInfo, format, args) }
func (l *Logger) Warn(format string, args ...any)  { l.output(chanWarn, format, args) }
func (l *Logger) Error(format string, args ...any) { l.output(chanError, format, args) }

// output is a no-op on a nil Logger.
func (l *Logger) output(ch channel, format string, args []any) {
	if l == nil {
		return
	}
	min, dst := LevelNormal, l.info
	switch ch {
	case chanDebug:
		min, dst = LevelVerbose, l.debug
	case chanWarn:
		dst = l.warn
	case chanError:
		dst = l.errLog
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.level >= min {
		dst.Output(3, fmt.Sprintf(format, args...))
	}
}
