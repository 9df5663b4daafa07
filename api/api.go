// Copyright 2017-2019, Square, Inc.

// Package api provides controllers for each api endpoint. Controllers are
// "dumb wiring"; there is little to no application logic in this package.
// Controllers call the linker to satisfy the api endpoint.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	log "github.com/sirupsen/logrus"

	serr "github.com/square/spinlink/errors"
	"github.com/square/spinlink/linker"
	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/spinlink/app"
)

const (
	API_ROOT = "/api/v1/"

	// Records returned by a drain when ?max is not given.
	DEFAULT_DRAIN_MAX = 100
)

var (
	// Error when the server is shutting down and not starting new runs
	ErrShuttingDown = errors.New("server is shutting down - no new runs are being started")
)

// API provides controllers for endpoints it registers with an echo server.
type API struct {
	appCtx       app.Context
	linker       *linker.Linker
	shutdownChan chan struct{}
	// --
	echo *echo.Echo
}

// NewAPI creates a new API struct. It initializes an echo web server within the
// struct, and registers all of the API's routes with it. Closing shutdownChan
// stops a run in progress between rounds.
func NewAPI(appCtx app.Context, lk *linker.Linker, shutdownChan chan struct{}) *API {
	api := &API{
		appCtx:       appCtx,
		linker:       lk,
		shutdownChan: shutdownChan,
		// --
		echo: echo.New(),
	}

	// //////////////////////////////////////////////////////////////////////
	// Routes
	// //////////////////////////////////////////////////////////////////////
	// Status of the linker, its links, and its queues.
	api.echo.GET(API_ROOT+"status", api.statusHandler)
	// Seed a link or queue.
	api.echo.POST(API_ROOT+"queues/:name", api.seedHandler)
	// Drain a link or queue.
	api.echo.GET(API_ROOT+"queues/:name", api.drainHandler)
	// Run to quiescence.
	api.echo.POST(API_ROOT+"run", api.runHandler)

	// //////////////////////////////////////////////////////////////////////
	// Middleware
	// //////////////////////////////////////////////////////////////////////
	api.echo.Use(middleware.Recover())
	api.echo.Use(middleware.Logger())

	return api
}

// Run runs the API web server. It blocks until Stop is called or the server
// fails.
func (api *API) Run() error {
	var err error
	if api.appCtx.Config.Server.TLS.CertFile != "" && api.appCtx.Config.Server.TLS.KeyFile != "" {
		err = api.echo.StartTLS(api.appCtx.Config.Server.Addr, api.appCtx.Config.Server.TLS.CertFile, api.appCtx.Config.Server.TLS.KeyFile)
	} else {
		err = api.echo.Start(api.appCtx.Config.Server.Addr)
	}
	return err
}

// Stop stops the API when it's running. When Stop is called, Run returns
// immediately. Make sure to wait for Stop to return.
func (api *API) Stop() error {
	var err error
	if api.appCtx.Config.Server.TLS.CertFile != "" && api.appCtx.Config.Server.TLS.KeyFile != "" {
		err = api.echo.TLSServer.Shutdown(context.TODO())
	} else {
		err = api.echo.Server.Shutdown(context.TODO())
	}
	return err
}

// ServeHTTP makes the API implement the http.HandlerFunc interface.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.echo.ServeHTTP(w, r)
}

// ============================== CONTROLLERS ============================== //

// GET <API_ROOT>/status
func (api *API) statusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, api.linker.Status())
}

// POST <API_ROOT>/queues/{name}
// Push the records in the payload, a JSON array of objects, onto a queue. If
// name is a link, the records go to its input queue.
func (api *API) seedHandler(c echo.Context) error {
	name := c.Param("name")

	var records []proto.Record
	if err := c.Bind(&records); err != nil {
		return err
	}
	for i, r := range records {
		if r == nil {
			return handleError(serr.NewConfigError("record %d is null", i))
		}
	}

	if err := api.linker.Seed(name, records); err != nil {
		return handleError(err)
	}
	log.WithFields(log.Fields{"name": name}).Infof("seeded %d records", len(records))
	return c.NoContent(http.StatusCreated)
}

// GET <API_ROOT>/queues/{name}?max=N
// Pop up to max records from a queue. If name is a link, the records come from
// its output queue.
func (api *API) drainHandler(c echo.Context) error {
	name := c.Param("name")

	max := DEFAULT_DRAIN_MAX
	if v := c.QueryParam("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return handleError(serr.NewConfigError("invalid max: %s", v))
		}
		max = n
	}

	records, err := api.linker.Drain(name, max)
	if err != nil {
		return handleError(err)
	}
	return c.JSON(http.StatusOK, records)
}

// POST <API_ROOT>/run
// Run the linker to quiescence and return its status. The run is synchronous.
// A run that fails or stalls still returns status; the reason is in its error
// field.
func (api *API) runHandler(c echo.Context) error {
	select {
	case <-api.shutdownChan:
		return handleError(ErrShuttingDown)
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-api.shutdownChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := api.linker.RunUntilComplete(ctx)
	switch err {
	case linker.ErrRunning:
		return handleError(err)
	case context.Canceled:
		return handleError(ErrShuttingDown)
	}
	return c.JSON(http.StatusOK, api.linker.Status())
}

// ------------------------------------------------------------------------- //

func handleError(err error) *echo.HTTPError {
	switch err.(type) {
	case serr.NameNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case serr.ConfigError:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		switch err {
		case linker.ErrRunning:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case ErrShuttingDown:
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
}
