// Copyright 2019, Square, Inc.

package link

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/retry"
)

// WithRetry returns a BatchFn that calls fn up to tries times on the same
// batch, waiting between failed tries. The linker itself never retries a
// batch. fn must be safe to call more than once with the same batch.
func WithRetry(fn BatchFn, tries int, wait time.Duration) BatchFn {
	return func(batch []proto.Record, cfg Config) ([]proto.Record, error) {
		var out []proto.Record
		err := retry.Do(tries, wait,
			func() error {
				var err error
				out, err = fn(batch, cfg)
				return err
			},
			func(tryNo int, err error) {
				log.WithFields(log.Fields{"try": tryNo, "max_tries": tries, "batch_size": len(batch)}).
					Warnf("batch function failed, retrying: %s", err)
			},
		)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
