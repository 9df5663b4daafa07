// Copyright 2016-2019, Square, Inc.

package config

import (
	"fmt"

	"github.com/alexflint/go-arg"
)

// Options represents command line options: --config, --addr, etc. Each can
// also be set by an env var. Command line options override env vars, and both
// override the config file.
type Options struct {
	Config   string `arg:"env:SPINLINK_CONFIG" help:"YAML config file"`
	Addr     string `arg:"env:SPINLINK_ADDR" help:"status API listen address"`
	LogLevel string `arg:"env:SPINLINK_LOG_LEVEL" help:"debug, info, warning, or error"`
	NoServe  bool   `help:"run to quiescence, print status, and exit"`
	Help     bool
	Version  bool
}

// ParseCommandLine parses args (usually os.Args[1:]) and env vars into a copy
// of def. --help and --version set Help and Version instead of returning an
// error.
func ParseCommandLine(args []string, def Options) (Options, error) {
	o := def
	p, err := arg.NewParser(arg.Config{Program: "spinlink"}, &o)
	if err != nil {
		return o, fmt.Errorf("arg.NewParser: %s", err)
	}
	if err := p.Parse(args); err != nil {
		switch err {
		case arg.ErrHelp:
			o.Help = true
		case arg.ErrVersion:
			o.Version = true
		default:
			return o, fmt.Errorf("error parsing command line: %s", err)
		}
	}
	return o, nil
}
