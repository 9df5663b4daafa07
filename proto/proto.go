// Copyright 2017-2019, Square, Inc.

// Package proto provides API message structures and constants.
package proto

import (
	"fmt"
)

const (
	STATE_UNKNOWN byte = iota

	// Normal states, in order
	STATE_IDLE       // no run in progress
	STATE_SCHEDULING // rounds executing
	STATE_QUIESCENT  // last run ended with a round that had no activity

	// Error states, no order
	STATE_FAIL    // last run aborted by a processing error or round limit
	STATE_STALLED // last run ended with links deferred on full queues
)

var StateName = map[byte]string{
	STATE_UNKNOWN:    "UNKNOWN",
	STATE_IDLE:       "IDLE",
	STATE_SCHEDULING: "SCHEDULING",
	STATE_QUIESCENT:  "QUIESCENT",
	STATE_FAIL:       "FAIL",
	STATE_STALLED:    "STALLED",
}

var StateValue = map[string]byte{
	"UNKNOWN":    STATE_UNKNOWN,
	"IDLE":       STATE_IDLE,
	"SCHEDULING": STATE_SCHEDULING,
	"QUIESCENT":  STATE_QUIESCENT,
	"FAIL":       STATE_FAIL,
	"STALLED":    STATE_STALLED,
}

// Record is one item moved between queues. Its contents belong to the batch
// functions; the linker never reads or modifies them.
type Record map[string]interface{}

// LinkStatus represents the counters and current shape of one link.
type LinkStatus struct {
	Name        string `json:"name"`
	Input       string `json:"input"`       // input queue name
	Output      string `json:"output"`      // output queue name
	BatchSize   int    `json:"batchSize"`   // max records per invocation
	Invocations uint64 `json:"invocations"` // times the batch function was called
	RecordsIn   uint64 `json:"recordsIn"`
	RecordsOut  uint64 `json:"recordsOut"`
	Failures    uint64 `json:"failures"`
	Active      bool   `json:"active"` // latest step consumed input
	Ready       int    `json:"ready"`  // records waiting on the input queue
}

// QueueStatus represents one queue and the links connected to it.
type QueueStatus struct {
	Name    string   `json:"name"`
	Depth   int      `json:"depth"`
	Readers []string `json:"readers"` // link names, registration order
	Writers []string `json:"writers"` // link names, registration order
}

// LinkerStatus represents the state of a linker and its latest run.
type LinkerStatus struct {
	RunId  string        `json:"runId,omitempty"` // empty until the first run
	State  byte          `json:"state"`           // STATE_* const
	Rounds uint          `json:"rounds"`          // rounds in the latest run
	Error  string        `json:"error,omitempty"` // why the latest run ended early
	Links  []LinkStatus  `json:"links"`
	Queues []QueueStatus `json:"queues"`
}

// Error is the standard response for all handled errors. Client code should
// check for this structure when the HTTP status code is not 200.
type Error struct {
	Message    string `json:"message"`    // human-readable and loggable error message
	Name       string `json:"name"`       // link or queue name that caused error, if any
	HTTPStatus int    `json:"httpStatus"` // HTTP status code
}

func NewError(msgFmt string, msgArgs ...interface{}) Error {
	return Error{
		Message: fmt.Sprintf(msgFmt, msgArgs...),
	}
}

func (e Error) Error() string {
	return e.Message
}
