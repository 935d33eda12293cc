// Package logging configures the logrus logger shared by the s3xfer tools and
// bridges AWS SDK request logs into it.
package logging

import (
	"io"

	"github.com/aws/smithy-go/logging"
	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to out. The level is Warn by default, Info
// when verbose and Debug when debug is set.
func New(out io.Writer, verbose, debug bool) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	switch {
	case debug:
		logger.SetLevel(log.DebugLevel)
	case verbose:
		logger.SetLevel(log.InfoLevel)
	default:
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// SDKLogger adapts a logrus logger to the smithy logging.Logger interface
// consumed by the AWS SDK.
type SDKLogger struct {
	Logger log.FieldLogger
}

var _ logging.Logger = SDKLogger{}

// Logf forwards an SDK log line. SDK warnings stay warnings; everything else
// is debug output.
func (l SDKLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	entry := l.Logger.WithField("component", "aws-sdk")
	if classification == logging.Warn {
		entry.Warnf(format, v...)
		return
	}
	entry.Debugf(format, v...)
}

// SDK returns an SDK logger when debug output is enabled, and nil otherwise
// so the SDK stays silent.
func SDK(logger *log.Logger) logging.Logger {
	if !logger.IsLevelEnabled(log.DebugLevel) {
		return nil
	}
	return SDKLogger{Logger: logger}
}
