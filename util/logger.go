// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// tagField carries the short level tag ([INF], [VRB], …) as its own
// console part so verbose and debug lines stay distinguishable even
// though both ride on zerolog's debug level.
const tagField = "tag"

// Logger writes levelled messages to stderr with optional timestamps
// and level prefixes.  It is a thin printf-style front over zerolog's
// console writer.
type Logger struct {
	level      LogLevel
	output     io.Writer
	timestamps bool // if true, prepend HH:MM:SS.mmm timestamps

	mu sync.Mutex
	zl zerolog.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.rebuild()
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = on
	l.rebuild()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger().Info().Str(tagField, "INF").Msgf(format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logger().Warn().Str(tagField, "WRN").Msgf(format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.logger().Debug().Str(tagField, "VRB").Msgf(format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.logger().Debug().Str(tagField, "DBG").Msgf(format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger().Error().Str(tagField, "ERR").Msgf(format, args...)
}

func (l *Logger) logger() *zerolog.Logger {
	l.mu.Lock()
	zl := l.zl
	l.mu.Unlock()
	return &zl
}

// rebuild recreates the zerolog pipeline; callers hold l.mu (or own l
// exclusively, as in NewLogger).
func (l *Logger) rebuild() {
	cw := zerolog.ConsoleWriter{
		Out:           zerolog.SyncWriter(l.output),
		NoColor:       true,
		TimeFormat:    "15:04:05.000",
		PartsOrder:    []string{zerolog.TimestampFieldName, tagField, zerolog.MessageFieldName},
		FieldsExclude: []string{tagField},
		FormatPartValueByName: func(i interface{}, name string) string {
			if name == tagField {
				return fmt.Sprintf("[%v]", i)
			}
			return fmt.Sprint(i)
		},
	}
	if !l.timestamps {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(cw).Level(zerologLevel(l.level)).With()
	if l.timestamps {
		ctx = ctx.Timestamp()
	}
	l.zl = ctx.Logger()
}

// zerologLevel is the floor handed to zerolog; Verbose and Debug are
// additionally gated in their methods since both use zerolog's debug
// level.
func zerologLevel(level LogLevel) zerolog.Level {
	switch {
	case level <= LogQuiet:
		return zerolog.ErrorLevel
	case level == LogNormal:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
