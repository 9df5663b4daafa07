// Copyright 2017-2019, Square, Inc.

// Package server bootstraps and runs spinlink.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/square/spinlink/api"
	"github.com/square/spinlink/config"
	"github.com/square/spinlink/link"
	"github.com/square/spinlink/linker"
	"github.com/square/spinlink/spinlink/app"
)

type Server struct {
	appCtx app.Context
	linker *linker.Linker
	api    *api.API

	shutdownChan chan struct{}
	apiStopped   chan struct{}
	stopMux      sync.Mutex
	stopped      bool
}

func NewServer(appCtx app.Context) *Server {
	return &Server{
		appCtx:       appCtx,
		stopMux:      sync.Mutex{},
		apiStopped:   make(chan struct{}),
		shutdownChan: make(chan struct{}),
	}
}

// Boot sets up the server: it loads the config, builds the linker, registers
// the configured links, seeds them, and makes the API. It does not run the
// linker; call RunLinker for that. Boot must be called before Run.
func (s *Server) Boot() error {
	// Only run Boot once.
	if s.api != nil {
		return nil
	}

	// Either both or neither RunAPI and StopAPI hooks must be provided - can't
	// have just one.
	if (s.appCtx.Hooks.RunAPI == nil) != (s.appCtx.Hooks.StopAPI == nil) {
		return fmt.Errorf("only one of RunAPI and StopAPI hooks provided - either both or neither must be provided")
	}

	// Load config file
	cfg, err := s.appCtx.Hooks.LoadConfig(s.appCtx)
	if err != nil {
		return fmt.Errorf("error loading config: %s", err)
	}
	// Override with env vars and command line options, if set
	cfg.Server.Addr = config.Env("SPINLINK_SERVER_ADDR", cfg.Server.Addr)
	if s.appCtx.Options.Addr != "" {
		cfg.Server.Addr = s.appCtx.Options.Addr
	}
	if s.appCtx.Options.LogLevel != "" {
		cfg.Log.Level = s.appCtx.Options.LogLevel
	}
	s.appCtx.Config = cfg

	if err := setupLogging(cfg.Log); err != nil {
		return err
	}
	cfgstr, _ := json.MarshalIndent(cfg, "", "  ")
	log.Debugf("Config: %s", cfgstr)

	// Linker and links
	lk, err := s.appCtx.Factories.MakeLinker(s.appCtx)
	if err != nil {
		return fmt.Errorf("error making linker: %s", err)
	}
	for _, lc := range cfg.Links {
		linkCfg := link.NewConfig(lc.Config)
		fn, err := s.appCtx.Factories.Fn.Make(lc.Fn, linkCfg)
		if err != nil {
			return fmt.Errorf("link %s: error making batch function %s: %s", lc.Name, lc.Fn, err)
		}
		if _, err := lk.Link(lc.Name, lc.Input, lc.Output, lc.BatchSize, fn, linkCfg); err != nil {
			return err
		}
	}

	// Seed
	for _, seed := range cfg.Seed {
		records, err := s.appCtx.Hooks.LoadSeed(s.appCtx, seed)
		if err != nil {
			return fmt.Errorf("error loading seed for %s: %s", seed.Target, err)
		}
		if err := lk.Seed(seed.Target, records); err != nil {
			return fmt.Errorf("error seeding %s: %s", seed.Target, err)
		}
		log.Infof("seeded %s with %d records from %s", seed.Target, len(records), seed.File)
	}
	s.linker = lk

	s.api = api.NewAPI(s.appCtx, s.linker, s.shutdownChan)
	return nil
}

// RunLinker runs the linker to quiescence. It returns early, with the linker
// idle, if the server is stopped.
func (s *Server) RunLinker() error {
	if s.linker == nil {
		panic("Server.RunLinker called before Server.Boot")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.shutdownChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return s.linker.RunUntilComplete(ctx)
}

// Run runs the API in the foreground. It returns when the API stops running
// (either from an error, or after a call to Stop). If a custom RunAPI hook
// has been provided, it will be called to run the API instead of the default
// api.Run.
//
// If stopOnSignal = true, the server will listen for TERM and INT signals from the
// OS and call Stop to shut itself down when those signals are received. Else, the
// caller must call Stop to shut down the server.
func (s *Server) Run(stopOnSignal bool) error {
	if s.api == nil {
		panic("Server.Run called before Server.Boot")
	}
	s.stopMux.Lock()
	stopped := s.stopped
	s.stopMux.Unlock()
	if stopped {
		return fmt.Errorf("server stopped")
	}

	if stopOnSignal {
		go s.waitForShutdown()
	}

	// Run the API - this will block until the API is stopped (or encounters
	// some fatal error).
	var err error
	if s.appCtx.Hooks.RunAPI != nil {
		err = s.appCtx.Hooks.RunAPI()
	} else {
		err = s.api.Run()
	}

	// If the server was stopped (as opposed to some error within the API), wait
	// to make sure it's done shutting down the API before returning.
	select {
	case <-s.shutdownChan:
		<-s.apiStopped
		return nil
	default:
	}

	if err != nil {
		return fmt.Errorf("error from API: %s", err)
	}
	return nil
}

// Stop stops the server. It stops a run in progress between rounds and then
// stops the API (using either the default api.Stop or the StopAPI hook if
// provided). Once Stop has been called, the server cannot be reused - future
// calls to Run will return an error.
func (s *Server) Stop() error {
	// Only stop once. We lock the whole Stop call, so that, if Stop is called
	// multiple times in quick succession, no calls will return before the server
	// has actually been shut down.
	s.stopMux.Lock()
	defer s.stopMux.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	log.Infof("Stopping spinlink server")

	close(s.shutdownChan)

	if s.api == nil {
		close(s.apiStopped)
		return nil
	}
	var err error
	if s.appCtx.Hooks.StopAPI != nil {
		err = s.appCtx.Hooks.StopAPI()
	} else {
		err = s.api.Stop()
	}
	close(s.apiStopped) // indicate to Run that the API is done shutting down

	if err != nil {
		return fmt.Errorf("error stopping API: %s", err)
	}
	return nil
}

// Linker returns the linker made in Boot.
func (s *Server) Linker() *linker.Linker {
	return s.linker
}

// API returns the API made in Boot.
func (s *Server) API() *api.API {
	return s.api
}

// Config returns the final config, after env var and command line overrides.
func (s *Server) Config() config.Spinlink {
	return s.appCtx.Config
}

// --------------------------------------------------------------------------

// Catch TERM and INT signals to gracefully shut down
func (s *Server) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	err := s.Stop()
	if err != nil {
		log.Errorf("error shutting down server: %s", err)
	}
}

func setupLogging(cfg config.Log) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log.level: %s", err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log.format: %s, expected text or json", cfg.Format)
	}
	return nil
}
