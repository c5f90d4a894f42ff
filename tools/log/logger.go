package log

import "github.com/sirupsen/logrus"

// WarnLevel is the warning log level.
var WarnLevel = logrus.WarnLevel

// InfoLevel is the info log level.
var InfoLevel = logrus.InfoLevel

// DebugLevel is the debug log level.
var DebugLevel = logrus.DebugLevel

// ErrorLevel is the error log level.
var ErrorLevel = logrus.ErrorLevel

// FatalLevel is the fatal log level.
var FatalLevel = logrus.FatalLevel

// PanicLevel is the panic log level.
var PanicLevel = logrus.PanicLevel

// TextFormatter aliases logrus's text formatter.
type TextFormatter = logrus.TextFormatter

// Level aliases logrus's level type.
type Level = logrus.Level

// CheckErr logs err at level if it is non-nil.
func CheckErr(level logrus.Level, err error) {
	if err != nil {
		Log(level, err)
	}
}

// Log records messages at the given level.
func Log(level logrus.Level, messages ...interface{}) {
	switch level {
	case logrus.InfoLevel:
		logrus.Info(messages...)
	case logrus.WarnLevel:
		logrus.Warn(messages...)
	case logrus.ErrorLevel:
		logrus.Error(messages...)
	case logrus.FatalLevel:
		logrus.Fatal(messages...)
	case logrus.PanicLevel:
		logrus.Panic(messages...)
	case logrus.DebugLevel:
		fallthrough
	default:
		logrus.Debug(messages...)
	}
}

// SetFormatter sets logrus's output formatter.
func SetFormatter(formatter logrus.Formatter) {
	logrus.SetFormatter(formatter)
}

// SetLevel sets the minimum level logged; messages below it are dropped.
func SetLevel(level logrus.Level) {
	logrus.SetLevel(level)
}

// WithField attaches a field to a log entry.
func WithField(key string, value interface{}) *logrus.Entry {
	return logrus.WithField(key, value)
}

// WithFields attaches fields to a log entry.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.WithFields(fields)
}

func Info(messages ...interface{}) {
	logrus.Info(messages...)
}

func Infof(format string, messages ...interface{}) {
	logrus.Infof(format, messages...)
}

func Warn(messages ...interface{}) {
	logrus.Warn(messages...)
}

func Warnf(format string, messages ...interface{}) {
	logrus.Warnf(format, messages...)
}

func Error(messages ...interface{}) {
	logrus.Error(messages...)
}

func Errorf(format string, messages ...interface{}) {
	logrus.Errorf(format, messages...)
}

func Fatal(messages ...interface{}) {
	logrus.Fatal(messages...)
}

func Debug(messages ...interface{}) {
	logrus.Debug(messages...)
}

func Debugf(format string, messages ...interface{}) {
	logrus.Debugf(format, messages...)
}
