// Copyright 2019, Square, Inc.

package errors_test

import (
	"errors"
	"testing"

	serr "github.com/square/spinlink/errors"
)

func TestIsConfigError(t *testing.T) {
	if !serr.IsConfigError(serr.NewConfigError("bad %s", "thing")) {
		t.Error("ConfigError is not a config error")
	}
	if !serr.IsConfigError(serr.NameNotFound{Name: "x"}) {
		t.Error("NameNotFound is not a config error")
	}
	if serr.IsConfigError(serr.ProcessingError{Link: "x"}) {
		t.Error("ProcessingError is a config error")
	}
	if serr.IsConfigError(nil) {
		t.Error("nil is a config error")
	}
}

func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := serr.RunError{
		RunId: "abc",
		Round: 3,
		Err:   serr.ProcessingError{Link: "crawler", BatchSize: 10, Err: cause},
	}
	expect := "run abc aborted in round 3: link crawler failed on batch of 10 records: boom"
	if err.Error() != expect {
		t.Errorf("got '%s', expected '%s'", err.Error(), expect)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, expected true")
	}
	var perr serr.ProcessingError
	if !errors.As(err, &perr) || perr.Link != "crawler" {
		t.Errorf("errors.As did not find the ProcessingError: %+v", perr)
	}
}
