// Copyright 2019, Square, Inc.

// Package errors provides errors reported to the caller. The API maps these to
// a proto.Error and an HTTP status. All errors implement the error interface
// and return a terse message because they are reported in context: for
// example, NameNotFound makes sense in response to seeding "urls" when no link
// or queue named "urls" exists.
package errors

import (
	"fmt"
)

var _ error = ConfigError{}

// ConfigError is returned synchronously when a linker is set up incorrectly:
// duplicate link names, invalid batch sizes, cycles, and the like. It is never
// returned by a run.
type ConfigError struct {
	Message string
}

func NewConfigError(msgFmt string, msgArgs ...interface{}) ConfigError {
	return ConfigError{Message: fmt.Sprintf(msgFmt, msgArgs...)}
}

func (e ConfigError) Error() string {
	return "invalid configuration: " + e.Message
}

// --------------------------------------------------------------------------

var _ error = NameNotFound{}

// NameNotFound is the configuration error for a name that is neither a
// registered link nor a known queue.
type NameNotFound struct {
	Name string
}

func (e NameNotFound) Error() string {
	return fmt.Sprintf("no link or queue named %s", e.Name)
}

// IsConfigError returns true if err is a ConfigError or NameNotFound.
func IsConfigError(err error) bool {
	switch err.(type) {
	case ConfigError, NameNotFound:
		return true
	}
	return false
}

// --------------------------------------------------------------------------

var _ error = ProcessingError{}

// ProcessingError is returned when a link's batch function fails. The batch
// that triggered it is dropped.
type ProcessingError struct {
	Link      string
	BatchSize int
	Err       error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("link %s failed on batch of %d records: %s", e.Link, e.BatchSize, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// --------------------------------------------------------------------------

var _ error = RunError{}

// RunError is returned by a run that was aborted. Records produced before the
// error remain in their queues.
type RunError struct {
	RunId string
	Round uint
	Err   error
}

func (e RunError) Error() string {
	return fmt.Sprintf("run %s aborted in round %d: %s", e.RunId, e.Round, e.Err)
}

func (e RunError) Unwrap() error {
	return e.Err
}
