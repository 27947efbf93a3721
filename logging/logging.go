// Package logging provides the structured logger facade used throughout
// the registry, wrapping github.com/sirupsen/logrus the way the rest of
// the ambient stack wraps a single third-party library behind a small
// interface rather than calling it directly at every call site.
package logging

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity.
type Level int

const (
	Error Level = iota
	Warn
	Info
	Debug
)

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	case Debug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is the interface every registry component logs through, so a
// caller can be handed a *StandardLogger, a NoOpLogger (tests), or any
// other implementation.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	WithFields(fields map[string]interface{}) Logger
	GetLevel() Level
	SetLevel(Level)
}

// StandardLogger is the default Logger, backed by a logrus.Entry.
type StandardLogger struct {
	entry *logrus.Entry
	level Level
}

var _ Logger = (*StandardLogger)(nil)

// New returns a new StandardLogger writing JSON-formatted entries.
func New() *StandardLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	return &StandardLogger{entry: logrus.NewEntry(l), level: Info}
}

// SetOutput redirects where log entries are written, mainly for tests.
func (l *StandardLogger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l *StandardLogger) Debug(format string, a ...interface{}) { l.entry.Debugf(format, a...) }
func (l *StandardLogger) Info(format string, a ...interface{})  { l.entry.Infof(format, a...) }
func (l *StandardLogger) Warn(format string, a ...interface{})  { l.entry.Warnf(format, a...) }
func (l *StandardLogger) Error(format string, a ...interface{}) { l.entry.Errorf(format, a...) }

func (l *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	return &StandardLogger{entry: l.entry.WithFields(fields), level: l.level}
}

func (l *StandardLogger) GetLevel() Level { return l.level }

func (l *StandardLogger) SetLevel(level Level) {
	l.level = level
	l.entry.Logger.SetLevel(level.logrusLevel())
}

// NoOpLogger discards everything logged to it, for tests that don't care
// about log output.
type NoOpLogger struct{}

var _ Logger = (*NoOpLogger)(nil)

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (*NoOpLogger) Debug(string, ...interface{})         {}
func (*NoOpLogger) Info(string, ...interface{})          {}
func (*NoOpLogger) Warn(string, ...interface{})          {}
func (*NoOpLogger) Error(string, ...interface{})         {}
func (n *NoOpLogger) WithFields(map[string]interface{}) Logger { return n }
func (*NoOpLogger) GetLevel() Level                      { return Info }
func (*NoOpLogger) SetLevel(Level)                       {}

// RequestContext carries per-request identifiers a handler wants echoed
// into every log line for that request (a trace/request id, the
// authenticated username).
type RequestContext struct {
	RequestID string
	Username  string
}

type requestContextKey struct{}

// NewContext returns a copy of parent carrying val, retrievable via
// FromContext.
func NewContext(parent context.Context, val *RequestContext) context.Context {
	return context.WithValue(parent, requestContextKey{}, val)
}

// FromContext returns the RequestContext associated with ctx, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	val, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return val, ok
}
