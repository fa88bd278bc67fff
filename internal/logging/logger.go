package logging

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func init() {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)
}

// colorEnabled mirrors the teacher's TTY-gated color usage: color is only
// emitted when standard error is a terminal.
var colorEnabled = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

// writer is an io.Writer that splits its input into lines and forwards each
// complete line to callback, buffering any trailing partial line.
type writer struct {
	callback func(string)
	buffer   []byte
}

func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the package's main logger type. Like the teacher's, it still
// functions if nil (it just logs nothing), so components may hold a Logger
// field without a constructor call in tests. It is safe for concurrent use.
//
// Every Logger carries a role tag (spec.md 7's "[sender]", "[receiver]",
// etc.) and, once a protocol version is known, renders it as "[role=version]"
// the way upstream rsync's error trailer does.
type Logger struct {
	role    string
	version uint8
	level   Level
}

// RootLogger is the root logger from which all role loggers derive. It
// defaults to LevelInfo.
var RootLogger = &Logger{level: LevelInfo}

// WithRole derives a sub-logger tagged with the given pipeline role (one of
// the errkind.Role constants, passed as a string to avoid a dependency
// cycle between logging and errkind).
func (l *Logger) WithRole(role string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{role: role, version: l.version, level: l.level}
}

// WithVersion records the negotiated protocol version on the logger so it
// can render the "[role=version]" trailer.
func (l *Logger) WithVersion(version uint8) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{role: l.role, version: version, level: l.level}
}

// WithLevel derives a sub-logger at a different verbosity threshold.
func (l *Logger) WithLevel(level Level) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{role: l.role, version: l.version, level: level}
}

func (l *Logger) tag() string {
	if l.role == "" {
		return ""
	}
	if l.version != 0 {
		return fmt.Sprintf("%s=%d", l.role, l.version)
	}
	return l.role
}

func (l *Logger) output(level Level, colorize func(string, ...interface{}) string, format string, v ...interface{}) {
	if l == nil || level > l.level || l.level == LevelDisabled {
		return
	}
	line := fmt.Sprintf(format, v...)
	if tag := l.tag(); tag != "" {
		line = fmt.Sprintf("[%s] %s", tag, line)
	}
	if colorize != nil && colorEnabled {
		line = colorize(line)
	}
	log.Output(3, line)
}

// Info logs basic execution information.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(LevelInfo, nil, format, v...)
}

// Debug logs advanced execution information.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.output(LevelDebug, nil, format, v...)
}

// Warn logs a non-fatal error, colorized yellow when attached to a terminal.
func (l *Logger) Warn(err error) {
	l.output(LevelWarn, func(s string, _ ...interface{}) string { return color.YellowString(s) }, "warning: %v", err)
}

// Error logs a fatal or near-fatal error, colorized red when attached to a
// terminal, with the source location suffix spec.md 7 requires.
func (l *Logger) Error(err error, file string, line int) {
	suffix := ""
	if file != "" {
		suffix = fmt.Sprintf(" at %s:%d", file, line)
	}
	l.output(LevelError, func(s string, _ ...interface{}) string { return color.RedString(s) }, "%v%s", err, suffix)
}

// Writer returns an io.Writer that logs each line written to it at
// LevelInfo; useful for piping a subprocess's stdout/stderr through the
// logger the way the teacher's ssh/process collaborators do.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return ioutil.Discard
	}
	return &writer{callback: func(s string) { l.Info("%s", s) }}
}
