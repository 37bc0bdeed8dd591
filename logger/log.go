package logger

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
	"github.com/sirupsen/logrus"
)

// Logger handles structured logging of messages from the allocator,
// auctions, and command line utilities.
type Logger struct {
	logrus *logrus.Logger
	fields logrus.Fields
}

// New returns a new Logger instance with the given namespace.
//
// After the namespace, arguments are key-value pairs which are
// included in all messages logged by the returned instance.
//	log := logger.New("auction", "run", runID)
func New(ns string, args ...interface{}) *Logger {
	f := fields(args...)
	f["ns"] = ns
	log := logrus.New()
	l := &Logger{logrus: log, fields: f}
	l.Configure(DefaultConfig())
	return l
}

// NewLogger returns a new Logger instance with the given namespace
// and configuration.
func NewLogger(ns string, conf Config) *Logger {
	l := New(ns)
	l.Configure(conf)
	return l
}

// NewSubLogger returns a new Logger instance with the given namespace,
// which shares output and level configuration with the parent.
func (l *Logger) NewSubLogger(ns string, args ...interface{}) *Logger {
	f := mergeFields(l.fields, fields(args...))
	f["ns"] = ns
	return &Logger{logrus: l.logrus, fields: f}
}

// WithFields returns a new Logger instance with the given fields
// included in all messages.
func (l *Logger) WithFields(args ...interface{}) *Logger {
	return &Logger{logrus: l.logrus, fields: mergeFields(l.fields, fields(args...))}
}

// Debug logs a debug message.
//
// After the first argument, arguments are key-value pairs which are
// written as structured logs.
//	log.Debug("Some message here", "key1", value1, "key2", value2)
func (l *Logger) Debug(msg string, args ...interface{}) {
	defer recoverLogErr()
	f := mergeFields(l.fields, fields(args...))
	l.logrus.WithFields(f).Debug(msg)
}

// Info logs an info message.
//
// After the first argument, arguments are key-value pairs which are
// written as structured logs.
//	log.Info("Some message here", "key1", value1, "key2", value2)
func (l *Logger) Info(msg string, args ...interface{}) {
	defer recoverLogErr()
	f := mergeFields(l.fields, fields(args...))
	l.logrus.WithFields(f).Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	defer recoverLogErr()
	f := mergeFields(l.fields, fields(args...))
	l.logrus.WithFields(f).Warn(msg)
}

// Error logs an error message.
//
// After the first argument, arguments are key-value pairs which are
// written as structured logs.
//	log.Error("Some message here", "key1", value1, "key2", value2)
//
// Error has a two-argument version that can be used as a shortcut.
//	err := runAuction()
//	log.Error("Couldn't run auction", err)
func (l *Logger) Error(msg string, args ...interface{}) {
	defer recoverLogErr()
	f := mergeFields(l.fields, fields(args...))
	l.logrus.WithFields(f).Error(msg)
}

// SetLevel sets the level of the logger, one of "debug", "info",
// "warn", "error".
func (l *Logger) SetLevel(lvl string) {
	switch lvl {
	case "debug":
		l.logrus.SetLevel(logrus.DebugLevel)
	case "info":
		l.logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		l.logrus.SetLevel(logrus.WarnLevel)
	case "error":
		l.logrus.SetLevel(logrus.ErrorLevel)
	default:
		l.logrus.SetLevel(logrus.InfoLevel)
	}
}

// SetFormatter sets the formatter of the logger.
func (l *Logger) SetFormatter(f logrus.Formatter) {
	l.logrus.SetFormatter(f)
}

// SetOutput sets the output of the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.logrus.SetOutput(w)
}

// Discard configures the logger to discard all logs.
func (l *Logger) Discard() {
	l.logrus.SetOutput(io.Discard)
}

// PrintSimpleError prints out an error message with a red "ERROR:" prefix.
func PrintSimpleError(err error) {
	fmt.Printf("%s %s\n", aurora.Red("ERROR:").Bold(), err.Error())
}

// recoverLogErr is used to recover from any panics during logging.
// Panics aren't expected of course, but logging should never crash
// a program, so this failsafe tries to prevent those crashes.
func recoverLogErr() {
	if r := recover(); r != nil {
		fmt.Println("Recovered from logging panic", r)
	}
}

func fields(args ...interface{}) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)

	if len(args) == 1 {
		switch x := args[0].(type) {
		case error:
			f["error"] = x
		default:
			f["unknown"] = args[0]
		}
		return f
	}

	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			k = fmt.Sprintf("unknown[%d]", i)
		}
		f[k] = args[i+1]
	}
	if len(args)%2 != 0 {
		f["unknown"] = args[len(args)-1]
	}
	return f
}

func mergeFields(base, extra logrus.Fields) logrus.Fields {
	f := make(logrus.Fields, len(base)+len(extra))
	for k, v := range base {
		f[k] = v
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}
