// Copyright 2019, Square, Inc.

package mock

import (
	"errors"
	"sync"

	"github.com/square/spinlink/link"
	"github.com/square/spinlink/proto"
)

var (
	ErrBatchFn = errors.New("forced error in batch function")
)

// BatchFn records every call to its Fn. By default Fn returns the batch
// unchanged. Set RunFunc for more involved mocks, or Err to fail every call.
type BatchFn struct {
	RunFunc func(batch []proto.Record, cfg link.Config) ([]proto.Record, error)
	Err     error
	// --
	sizes       []int         // batch size of each call
	configs     []link.Config // config of each call
	*sync.Mutex               // guards sizes and configs
}

func NewBatchFn() *BatchFn {
	return &BatchFn{
		Mutex: &sync.Mutex{},
	}
}

// Fn returns the link.BatchFn to register.
func (m *BatchFn) Fn() link.BatchFn {
	return func(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
		m.Lock()
		m.sizes = append(m.sizes, len(batch))
		m.configs = append(m.configs, cfg)
		m.Unlock()
		if m.Err != nil {
			return nil, m.Err
		}
		if m.RunFunc != nil {
			return m.RunFunc(batch, cfg)
		}
		return batch, nil
	}
}

// Calls returns the number of times Fn was called.
func (m *BatchFn) Calls() int {
	m.Lock()
	defer m.Unlock()
	return len(m.sizes)
}

// Sizes returns the batch size of each call, in call order.
func (m *BatchFn) Sizes() []int {
	m.Lock()
	defer m.Unlock()
	sizes := make([]int, len(m.sizes))
	copy(sizes, m.sizes)
	return sizes
}

// Configs returns the config of each call, in call order.
func (m *BatchFn) Configs() []link.Config {
	m.Lock()
	defer m.Unlock()
	configs := make([]link.Config, len(m.configs))
	copy(configs, m.configs)
	return configs
}

// Double returns two records per input record: the input plus "n": 0 and the
// input plus "n": 1, in input order.
func Double(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	out := make([]proto.Record, 0, len(batch)*2)
	for _, r := range batch {
		for n := 0; n < 2; n++ {
			d := proto.Record{"n": n}
			for k, v := range r {
				d[k] = v
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// Drop consumes every batch and returns nothing.
func Drop(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	return nil, nil
}
