// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"fmt"

	"github.com/juju/loggo/v2"
)

// NoopLogger is a logger that does nothing.
type NoopLogger struct{}

func (NoopLogger) Criticalf(string, ...interface{}) {}
func (NoopLogger) Errorf(string, ...interface{})    {}
func (NoopLogger) Warningf(string, ...interface{})  {}
func (NoopLogger) Infof(string, ...interface{})     {}
func (NoopLogger) Debugf(string, ...interface{})    {}
func (NoopLogger) Tracef(string, ...interface{})    {}

func (NoopLogger) IsErrorEnabled() bool   { return false }
func (NoopLogger) IsWarningEnabled() bool { return false }
func (NoopLogger) IsInfoEnabled() bool    { return false }
func (NoopLogger) IsDebugEnabled() bool   { return false }
func (NoopLogger) IsTraceEnabled() bool   { return false }

// CheckLog is an interface that can be used to log messages to a
// *testing.T or *check.C.
type CheckLog interface {
	Logf(string, ...interface{})
}

// CheckLogger is a logger that records messages on a *testing.T or
// *check.C, so test failures come with the log context that led up to
// them.
type CheckLogger struct {
	Log CheckLog
}

// NewCheckLogger returns a CheckLogger that logs to the given CheckLog.
func NewCheckLogger(log CheckLog) CheckLogger {
	return CheckLogger{Log: log}
}

func (c CheckLogger) Criticalf(msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("CRITICAL: %s", msg), args...)
}
func (c CheckLogger) Errorf(msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("ERROR: %s", msg), args...)
}
func (c CheckLogger) Warningf(msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("WARNING: %s", msg), args...)
}
func (c CheckLogger) Infof(msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("INFO: %s", msg), args...)
}
func (c CheckLogger) Debugf(msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("DEBUG: %s", msg), args...)
}
func (c CheckLogger) Tracef(msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("TRACE: %s", msg), args...)
}
func (c CheckLogger) Logf(level loggo.Level, msg string, args ...interface{}) {
	c.Log.Logf(fmt.Sprintf("%s: %s", level.String(), msg), args...)
}

func (c CheckLogger) IsErrorEnabled() bool            { return true }
func (c CheckLogger) IsWarningEnabled() bool          { return true }
func (c CheckLogger) IsInfoEnabled() bool             { return true }
func (c CheckLogger) IsDebugEnabled() bool            { return true }
func (c CheckLogger) IsTraceEnabled() bool            { return true }
func (c CheckLogger) IsLevelEnabled(loggo.Level) bool { return true }
