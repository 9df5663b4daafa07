// Copyright 2017-2019, Square, Inc.

// Package retry provides a simple retry loop for caller-side retry policies.
package retry

import (
	"time"
)

type TryFunc func() error
type LogFunc func(tryNo int, err error)

// Do calls tryFunc up to tries times, sleeping wait between failed tries. It
// returns nil on the first success, else the error from the last try. logFunc,
// if not nil, is called with every error that will be retried.
func Do(tries int, wait time.Duration, tryFunc TryFunc, logFunc LogFunc) error {
	if tries < 1 {
		tries = 1
	}
	var err error
	for tryNo := 1; tryNo <= tries; tryNo++ {
		if err = tryFunc(); err == nil {
			return nil
		}
		if tryNo == tries {
			break
		}
		if logFunc != nil {
			logFunc(tryNo, err)
		}
		time.Sleep(wait)
	}
	return err
}
