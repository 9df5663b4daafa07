// Copyright 2017-2019, Square, Inc.

// Package app provides app-wide data structs and functions. The server is
// configured with a Context. Wrapper code can integrate with spinlink by
// passing a custom Context to server.NewServer; integration is done with hooks
// and factories.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/square/spinlink/config"
	"github.com/square/spinlink/fns"
	"github.com/square/spinlink/linker"
	"github.com/square/spinlink/proto"
)

type Context struct {
	Hooks     Hooks
	Factories Factories

	// Set by main.go or by wrapper
	Options config.Options // command line options (--config, etc.)

	// Set by server.Boot
	Config config.Spinlink
}

type Factories struct {
	MakeLinker func(Context) (*linker.Linker, error)
	Fn         fns.Factory // makes batch functions for configured links
}

type Hooks struct {
	LoadConfig func(Context) (config.Spinlink, error)
	LoadSeed   func(Context, config.Seed) ([]proto.Record, error)

	// RunAPI runs the status API. It should block until the API is stopped
	// via a call to StopAPI. If this hook is provided, it is called instead of
	// api.Run, and StopAPI must be provided as well.
	RunAPI func() error

	// StopAPI stops running the status API. It's called when the server is
	// stopped, and it should cause RunAPI to return. If this hook is
	// provided, it is called instead of api.Stop, and RunAPI must be provided
	// as well.
	StopAPI func() error
}

func Defaults() Context {
	return Context{
		Factories: Factories{
			MakeLinker: MakeLinker,
			Fn:         fns.Builtin,
		},
		Hooks: Hooks{
			LoadConfig: LoadConfig,
			LoadSeed:   LoadSeed,
		},
	}
}

// LoadConfig loads the --config file over config.Defaults. With no file, it
// returns the defaults: a linker with no links.
func LoadConfig(appCtx Context) (config.Spinlink, error) {
	cfg := config.Defaults()
	if appCtx.Options.Config == "" {
		return cfg, nil
	}
	err := config.Load(appCtx.Options.Config, &cfg)
	return cfg, err
}

// MakeLinker makes a linker with the scheduler options from the config. It
// does not register links.
func MakeLinker(appCtx Context) (*linker.Linker, error) {
	sc := appCtx.Config.Scheduler
	if sc.QueueCapacity < 0 {
		return nil, fmt.Errorf("scheduler.queue_capacity %d, must be >= 0", sc.QueueCapacity)
	}
	opts := linker.Options{
		Name:          "spinlink",
		Concurrent:    sc.Concurrent,
		QueueCapacity: sc.QueueCapacity,
		MaxRounds:     sc.MaxRounds,
		Logger:        log.NewEntry(log.StandardLogger()),
	}
	return linker.New(opts), nil
}

// LoadSeed reads the records in seed.File: a stream of JSON objects, usually
// one per line.
func LoadSeed(appCtx Context, seed config.Seed) ([]proto.Record, error) {
	f, err := os.Open(seed.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records := []proto.Record{}
	dec := json.NewDecoder(f)
	for {
		var r proto.Record
		err := dec.Decode(&r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %s", seed.File, len(records)+1, err)
		}
		if r == nil {
			return nil, fmt.Errorf("%s: record %d is null", seed.File, len(records)+1)
		}
		records = append(records, r)
	}
	return records, nil
}
