// Package logger provides the console and no-op ports.Logger
// implementations. Messages are go-l10n format keys.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"

	"github.com/user/vidplay/pkg/ports"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

var levelColors = map[ports.LogLevel]string{
	ports.LevelDebug: colorGray,
	ports.LevelWarn:  colorYellow,
	ports.LevelError: colorRed,
}

// output is shared by a logger and the loggers derived from it, so lines
// written by the decode goroutines never interleave.
type output struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer

	// start is the zero of the elapsed prefix; zero disables it.
	start time.Time
	now   func() time.Time
}

// ConsoleLogger writes debug and info lines to one writer and warnings and
// errors to another.
type ConsoleLogger struct {
	level     ports.LogLevel
	component string
	color     bool
	output    *output
}

// NewConsole logs to stdout and stderr. Color output is enabled when stdout
// is a terminal.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	l := NewWriter(level, os.Stdout, os.Stderr)
	l.color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return l
}

// NewWriter creates an uncolored logger.
func NewWriter(level ports.LogLevel, out, errOut io.Writer) *ConsoleLogger {
	return &ConsoleLogger{
		level:  level,
		output: &output{out: out, errOut: errOut, now: time.Now},
	}
}

// WithElapsed prefixes every line with the time since the call, e.g.
// "+1.234s". Loggers derived from l share the prefix.
func (l *ConsoleLogger) WithElapsed() *ConsoleLogger {
	l.output.mu.Lock()
	l.output.start = l.output.now()
	l.output.mu.Unlock()
	return l
}

func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.log(ports.LevelDebug, msg, args)
}

func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.log(ports.LevelInfo, msg, args)
}

func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.log(ports.LevelWarn, msg, args)
}

func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.log(ports.LevelError, msg, args)
}

// WithComponent returns a logger that prefixes lines with the component
// name. Nested components are joined with a slash.
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	if l.component != "" {
		component = l.component + "/" + component
	}
	return &ConsoleLogger{
		level:     l.level,
		component: component,
		color:     l.color,
		output:    l.output,
	}
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args []interface{}) {
	if level < l.level {
		return
	}
	line := l10n.F(msg, args...)

	if l.component != "" {
		if l.color {
			line = fmt.Sprintf("%s[%s]%s %s", colorCyan, l.component, colorReset, line)
		} else {
			line = fmt.Sprintf("[%s] %s", l.component, line)
		}
	}
	if c, ok := levelColors[level]; ok && l.color {
		line = c + line + colorReset
	}

	w := l.output.out
	if level >= ports.LevelWarn {
		w = l.output.errOut
	}

	l.output.mu.Lock()
	defer l.output.mu.Unlock()
	if !l.output.start.IsZero() {
		line = fmt.Sprintf("+%.3fs %s", l.output.now().Sub(l.output.start).Seconds(), line)
	}
	fmt.Fprintln(w, line)
}
