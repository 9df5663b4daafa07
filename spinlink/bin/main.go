// Copyright 2017-2019, Square, Inc.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/square/spinlink/config"
	"github.com/square/spinlink/spinlink/app"
	"github.com/square/spinlink/spinlink/server"
	"github.com/square/spinlink/version"
)

func main() {
	o, err := config.ParseCommandLine(os.Args[1:], config.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if o.Help {
		fmt.Println("Usage: spinlink [--config FILE] [--addr ADDR] [--loglevel LEVEL] [--noserve] [--version]")
		os.Exit(0)
	}
	if o.Version {
		fmt.Println("spinlink " + version.Version())
		os.Exit(0)
	}

	appCtx := app.Defaults()
	appCtx.Options = o
	s := server.NewServer(appCtx)
	if err := s.Boot(); err != nil {
		log.Fatalf("Error starting spinlink: %s", err)
	}

	if o.NoServe {
		runErr := s.RunLinker()
		status, _ := json.MarshalIndent(s.Linker().Status(), "", "  ")
		fmt.Println(string(status))
		if runErr != nil {
			log.Fatalf("Run failed: %s", runErr)
		}
		return
	}

	// Serve the API while the initial run goes, so its progress can be
	// watched. A failed run is reported in the status.
	go func() {
		if err := s.RunLinker(); err != nil {
			log.Errorf("Initial run: %s", err)
		}
	}()
	if err := s.Run(true); err != nil {
		log.Fatalf("spinlink stopped: %s", err)
	}
}
