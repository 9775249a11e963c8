package ports

import "fmt"

// LogLevel is the severity of a log message.
type LogLevel int

const (
	// LevelDebug covers per-packet and per-frame detail from the decode
	// loops and adapters.
	LevelDebug LogLevel = iota
	// LevelInfo covers session lifecycle: open, state changes, completion.
	LevelInfo
	// LevelWarn covers skipped packets, truncated input and dropped audio.
	LevelWarn
	// LevelError covers failures that end a session.
	LevelError
	// LevelQuiet suppresses all output.
	LevelQuiet
)

var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

// String returns the name accepted by ParseLogLevel.
func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLogLevel parses a level name. The empty string selects LevelInfo.
func ParseLogLevel(s string) (LogLevel, error) {
	if s == "" {
		return LevelInfo, nil
	}
	for i, name := range levelNames {
		if name == s {
			return LogLevel(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging port. Messages are format keys registered with
// go-l10n so they can be translated before formatting.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the
	// component name, e.g. "demux" or "video".
	WithComponent(component string) Logger
}
