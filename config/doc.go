/*
Copyright 2017-2019, Square, Inc.

Package config provides the ability to load config files into predefined
structures that are used by spinlink. The server loads the Spinlink struct in
spinlink/server. It provides all of the config needed to build a linker, seed
it, and serve its status API.

Types of config structs provided by this package:

* Spinlink: all of the config needed to run spinlink

* Server: the configuration for running a webserver (ex: the listen address the
  server should run on, the TLS config the server should run with, etc.)

* Scheduler: linker options (ex: concurrent rounds, queue capacity, etc.)

* Link: one link to register (ex: its name, queues, batch size, and the name of
  its batch function)

* Seed: records to push onto a link or queue before the first run
*/
package config
