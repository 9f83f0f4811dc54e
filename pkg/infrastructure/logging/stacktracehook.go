package logging

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const stackKey = "stack"

// NewStackTraceHook replaces the error field with its message and, when any error in the
// chain was created by github.com/pkg/errors, adds the innermost stack trace.
func NewStackTraceHook() logrus.Hook {
	return stackTraceHook{}
}

type stackTraceHook struct{}

func (stackTraceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (stackTraceHook) Fire(entry *logrus.Entry) error {
	val, ok := entry.Data[logrus.ErrorKey]
	if !ok {
		return nil
	}
	err, ok := val.(error)
	if !ok {
		return nil
	}
	if err == nil {
		delete(entry.Data, logrus.ErrorKey)
		return nil
	}

	if tracer := deepestStackTracer(err); tracer != nil {
		entry.Data[stackKey] = strings.ReplaceAll(fmt.Sprintf("%+v", tracer.StackTrace()), " ", "\n")
	}
	entry.Data[logrus.ErrorKey] = err.Error()

	return nil
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func deepestStackTracer(err error) stackTracer {
	var found stackTracer
	for err != nil {
		if tracer, ok := err.(stackTracer); ok {
			found = tracer
		}
		err = stderrors.Unwrap(err)
	}
	return found
}
