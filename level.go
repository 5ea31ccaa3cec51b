package redislog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is the severity of a log record. Lower values are more severe, so a
// threshold admits every level that is numerically at or below it.
type Level int

const (
	// LevelOff is only meaningful as a threshold; it disables the sink.
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Leveler provides a Level. Level itself implements it.
type Leveler interface {
	Level() Level
}

// Level returns l, so a Level can be used as a Leveler.
func (l Level) Level() Level { return l }

// SlogLevelTrace is the slog level that maps to LevelTrace. slog has no trace
// level of its own, so any level below slog.LevelDebug is treated as trace.
const SlogLevelTrace = slog.Level(-8)

// String returns the upper-case name used on the wire.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "OFF"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel parses a level name, ignoring case. "WARNING" is accepted as an
// alias for WARN.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OFF":
		return LevelOff, nil
	case "ERROR":
		return LevelError, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	case "TRACE":
		return LevelTrace, nil
	}
	return LevelOff, fmt.Errorf("unknown log level: %q", s)
}

// admits reports whether a record at level l passes the threshold.
func (threshold Level) admits(l Level) bool {
	return l != LevelOff && l <= threshold
}

// LevelFromSlog maps a slog level onto the five-level scheme. Custom slog
// levels are bucketed downward, e.g. slog.LevelWarn+2 is still LevelWarn.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	case l >= slog.LevelDebug:
		return LevelDebug
	default:
		return LevelTrace
	}
}
