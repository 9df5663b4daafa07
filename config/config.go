// Copyright 2017-2019, Square, Inc.

package config

import (
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	DEFAULT_ADDR       = "127.0.0.1:32410"
	DEFAULT_LOG_LEVEL  = "info"
	DEFAULT_LOG_FORMAT = "text"
)

///////////////////////////////////////////////////////////////////////////////
// High-Level Config Struct
///////////////////////////////////////////////////////////////////////////////

// Spinlink is the config read by spinlink/server. It describes the whole graph:
// scheduler options, the links to register, and the records to seed before the
// first run.
type Spinlink struct {
	// The config that the status API web server will run with.
	Server Server `yaml:"server"`

	// Log level and format.
	Log Log `yaml:"log"`

	// Options for the linker.
	Scheduler Scheduler `yaml:"scheduler"`

	// Links to register, in order. Registration order is the order links step
	// each round.
	Links []Link `yaml:"links"`

	// Records to seed before the first run.
	Seed []Seed `yaml:"seed"`
}

///////////////////////////////////////////////////////////////////////////////
// Config Components
///////////////////////////////////////////////////////////////////////////////

// Configuration for a web server.
type Server struct {
	// The address the server will listen on (ex: "127.0.0.1:80").
	Addr string `yaml:"addr"`

	// The TLS config used by the server.
	TLS TLS `yaml:"tls"`
}

// TLS configuration.
type TLS struct {
	// The certificate file to use.
	CertFile string `yaml:"cert_file"`

	// The key file to use.
	KeyFile string `yaml:"key_file"`
}

// Log configuration.
type Log struct {
	// A logrus level: debug, info, warning, error.
	Level string `yaml:"level"`

	// text or json.
	Format string `yaml:"format"`
}

// Scheduler configuration, passed to linker.Options.
type Scheduler struct {
	// Run each link in its own goroutine.
	Concurrent bool `yaml:"concurrent"`

	// Soft capacity of every queue. 0 is unbounded.
	QueueCapacity int `yaml:"queue_capacity"`

	// Most rounds per run. 0 is no limit.
	MaxRounds uint `yaml:"max_rounds"`
}

// Link configuration. Fn is the name of a batch function known to the fns
// factory, and Config is given to it on every call.
type Link struct {
	Name      string                 `yaml:"name"`
	Input     string                 `yaml:"input"`
	Output    string                 `yaml:"output"`
	BatchSize int                    `yaml:"batch_size"`
	Fn        string                 `yaml:"fn"`
	Config    map[string]interface{} `yaml:"config"`
}

// Seed configuration. Target is a link or queue name. File has one JSON
// object per line; each one is a record.
type Seed struct {
	Target string `yaml:"target"`
	File   string `yaml:"file"`
}

///////////////////////////////////////////////////////////////////////////////
// Loading Config
///////////////////////////////////////////////////////////////////////////////

// Defaults returns a Spinlink config with default values. Load into the
// returned value to override them.
func Defaults() Spinlink {
	return Spinlink{
		Server: Server{
			Addr: DEFAULT_ADDR,
		},
		Log: Log{
			Level:  DEFAULT_LOG_LEVEL,
			Format: DEFAULT_LOG_FORMAT,
		},
	}
}

// Load loads a configuration file into the struct pointed to by the
// configStruct argument.
func Load(configFile string, configStruct interface{}) error {
	// Make sure the file exists.
	_, err := os.Stat(configFile)
	if err != nil {
		return err
	}

	// Read the file.
	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}

	// Unmarshal the contents of the file into the provided struct.
	err = yaml.Unmarshal(data, configStruct)
	if err != nil {
		return err
	}

	return nil
}

// Env returns the value of the environment variable key if it's set and not
// empty, else def.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
