// Copyright 2019, Square, Inc.

package server_test

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/spinlink/config"
	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/spinlink/app"
	"github.com/square/spinlink/spinlink/server"
)

func createTempFile(t *testing.T, content string) string {
	tmpfile, err := ioutil.TempFile("", "spinlink_server_test")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

// crawlerConfig returns a config file for urls -> expand -> vectorize -> sum,
// seeded from seedFile.
func crawlerConfig(t *testing.T, seedFile string) string {
	return createTempFile(t, fmt.Sprintf(`
---
log:
  level: warning
scheduler:
  concurrent: true
links:
  - name: crawler
    input: urls
    output: links
    batch_size: 10
    fn: expand
  - name: transform
    input: links
    output: vecs
    batch_size: 10
    fn: vectorize
  - name: sum
    input: vecs
    output: mean_vec
    batch_size: 10000
    fn: sum
seed:
  - target: crawler
    file: %s
`, seedFile))
}

func TestBootAndRunLinker(t *testing.T) {
	seedFile := createTempFile(t, "{\"url\": \"0.com\"}\n{\"url\": \"1.com\"}\n{\"url\": \"2.com\"}\n{\"url\": \"3.com\"}\n{\"url\": \"4.com\"}\n")
	defer os.Remove(seedFile)
	cfgFile := crawlerConfig(t, seedFile)
	defer os.Remove(cfgFile)

	appCtx := app.Defaults()
	appCtx.Options.Config = cfgFile
	appCtx.Options.Addr = "127.0.0.1:0"
	s := server.NewServer(appCtx)
	if err := s.Boot(); err != nil {
		t.Fatal(err)
	}
	if s.Config().Server.Addr != "127.0.0.1:0" {
		t.Errorf("addr = %s, expected command line option 127.0.0.1:0", s.Config().Server.Addr)
	}

	lk := s.Linker()
	if n, _ := lk.Ready("crawler"); n != 5 {
		t.Errorf("ready = %d, expected 5", n)
	}

	if err := s.RunLinker(); err != nil {
		t.Fatal(err)
	}
	if lk.State() != proto.STATE_QUIESCENT {
		t.Errorf("state = %s, expected QUIESCENT", proto.StateName[lk.State()])
	}

	out, _ := lk.Drain("sum", 100)
	total := 0.0
	for _, r := range out {
		total += r["sum_vector"].(float64)
	}
	if total != 60.0 {
		t.Errorf("sum = %f, expected 60", total)
	}
	if diff := deep.Equal(lk.Sinks(), []string{"mean_vec"}); diff != nil {
		t.Error(diff)
	}
}

func TestBootErrors(t *testing.T) {
	tests := []struct {
		desc   string
		config string
	}{
		{"unknown fn", `
links:
  - {name: a, input: in, output: out, batch_size: 1, fn: nope}
`},
		{"duplicate link", `
links:
  - {name: a, input: in, output: out, batch_size: 1, fn: identity}
  - {name: a, input: in, output: out2, batch_size: 1, fn: identity}
`},
		{"cycle", `
links:
  - {name: a, input: q1, output: q2, batch_size: 1, fn: identity}
  - {name: b, input: q2, output: q1, batch_size: 1, fn: identity}
`},
		{"zero batch size", `
links:
  - {name: a, input: in, output: out, batch_size: 0, fn: identity}
`},
		{"unknown seed target", `
seed:
  - {target: nope, file: /dev/null}
`},
		{"invalid log level", `
log:
  level: loud
`},
	}
	for _, tt := range tests {
		cfgFile := createTempFile(t, tt.config)
		appCtx := app.Defaults()
		appCtx.Options.Config = cfgFile
		err := server.NewServer(appCtx).Boot()
		os.Remove(cfgFile)
		if err == nil {
			t.Errorf("%s: no error, expected one", tt.desc)
		}
	}
}

func TestBootOneHook(t *testing.T) {
	appCtx := app.Defaults()
	appCtx.Hooks.RunAPI = func() error { return nil }
	if err := server.NewServer(appCtx).Boot(); err == nil {
		t.Error("no error, expected one when only RunAPI is provided")
	}
}

func TestRunStop(t *testing.T) {
	apiRunning := make(chan struct{})
	apiStopped := make(chan struct{})
	appCtx := app.Defaults()
	appCtx.Hooks.LoadConfig = func(app.Context) (config.Spinlink, error) {
		return config.Defaults(), nil
	}
	appCtx.Hooks.RunAPI = func() error {
		close(apiRunning)
		<-apiStopped
		return nil
	}
	appCtx.Hooks.StopAPI = func() error {
		close(apiStopped)
		return nil
	}

	s := server.NewServer(appCtx)
	if err := s.Boot(); err != nil {
		t.Fatal(err)
	}

	doneChan := make(chan error)
	go func() { doneChan <- s.Run(false) }()
	<-apiRunning

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-doneChan:
		if err != nil {
			t.Error(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	// Stopped servers don't run again, and stopping twice is a no-op.
	if err := s.Run(false); err == nil {
		t.Error("no error running a stopped server")
	}
	if err := s.Stop(); err != nil {
		t.Error(err)
	}
}
