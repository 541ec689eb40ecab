package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Stacktrace = "stacktrace"

// WithStacktrace adds err to the entry, along with the innermost pkg/errors stack trace recorded in its chain.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// ExtractStack returns the deepest stack trace found by following both Cause and Unwrap links, or nil if the
// chain records none.
func ExtractStack(err error) errors.StackTrace {
	var stack errors.StackTrace
	for err != nil {
		if tracer, ok := err.(interface{ StackTrace() errors.StackTrace }); ok {
			stack = tracer.StackTrace()
		}
		switch e := err.(type) {
		case interface{ Cause() error }:
			err = e.Cause()
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			err = nil
		}
	}
	return stack
}
