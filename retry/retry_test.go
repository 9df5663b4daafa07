// Copyright 2019, Square, Inc.

package retry_test

import (
	"errors"
	"testing"

	"github.com/square/spinlink/retry"
)

var errTry = errors.New("forced error in try")

func TestDoSuccessFirstTry(t *testing.T) {
	calls := 0
	err := retry.Do(3, 0, func() error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Errorf("err = %s, expected nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, expected 1", calls)
	}
}

func TestDoSuccessAfterRetries(t *testing.T) {
	calls := 0
	logged := []int{}
	err := retry.Do(5, 0, func() error {
		calls++
		if calls < 3 {
			return errTry
		}
		return nil
	}, func(tryNo int, err error) {
		logged = append(logged, tryNo)
	})
	if err != nil {
		t.Errorf("err = %s, expected nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, expected 3", calls)
	}
	if len(logged) != 2 || logged[0] != 1 || logged[1] != 2 {
		t.Errorf("logged tries = %v, expected [1 2]", logged)
	}
}

func TestDoAllTriesFail(t *testing.T) {
	calls := 0
	logged := 0
	err := retry.Do(3, 0, func() error {
		calls++
		return errTry
	}, func(int, error) { logged++ })
	if err != errTry {
		t.Errorf("err = %v, expected %s", err, errTry)
	}
	if calls != 3 {
		t.Errorf("calls = %d, expected 3", calls)
	}
	// The last error is returned, not logged.
	if logged != 2 {
		t.Errorf("logged = %d, expected 2", logged)
	}
}

func TestDoZeroTries(t *testing.T) {
	calls := 0
	retry.Do(0, 0, func() error {
		calls++
		return errTry
	}, nil)
	if calls != 1 {
		t.Errorf("calls = %d, expected 1", calls)
	}
}
