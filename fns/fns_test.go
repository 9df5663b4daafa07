// Copyright 2019, Square, Inc.

package fns_test

import (
	"context"
	"testing"

	"github.com/go-test/deep"

	serr "github.com/square/spinlink/errors"
	"github.com/square/spinlink/fns"
	"github.com/square/spinlink/link"
	"github.com/square/spinlink/linker"
	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/test"
)

var noConfig = link.NewConfig(nil)

func TestMakeUnknown(t *testing.T) {
	_, err := fns.Builtin.Make("nope", noConfig)
	if err != fns.ErrUnknownFnType {
		t.Errorf("err = %v, expected %s", err, fns.ErrUnknownFnType)
	}
}

func TestMakeTagRequiresField(t *testing.T) {
	_, err := fns.Builtin.Make("tag", noConfig)
	if _, ok := err.(serr.ConfigError); !ok {
		t.Errorf("err = %v, expected serr.ConfigError", err)
	}
}

func TestMakeInvalidRetryWait(t *testing.T) {
	cfg := link.NewConfig(map[string]interface{}{
		fns.CFG_RETRY_TRIES: 3,
		fns.CFG_RETRY_WAIT:  "soon",
	})
	_, err := fns.Builtin.Make("identity", cfg)
	if _, ok := err.(serr.ConfigError); !ok {
		t.Errorf("err = %v, expected serr.ConfigError", err)
	}
}

func TestExpand(t *testing.T) {
	got, err := fns.Expand(test.InitURLs(2), noConfig)
	if err != nil {
		t.Fatal(err)
	}
	expect := []proto.Record{
		{"url": "0.com/a.html"},
		{"url": "0.com/b.html"},
		{"url": "1.com/a.html"},
		{"url": "1.com/b.html"},
	}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}

	cfg := link.NewConfig(map[string]interface{}{"pages": []interface{}{"index.html"}})
	got, err = fns.Expand(test.InitURLs(1), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(got, []proto.Record{{"url": "0.com/index.html"}}); diff != nil {
		t.Error(diff)
	}

	if _, err := fns.Expand(test.InitRecords(1), noConfig); err == nil {
		t.Error("no error for a record without a url")
	}
}

func TestVectorizeDoesNotModifyInput(t *testing.T) {
	in := test.InitURLs(1)
	got, err := fns.Vectorize(in, noConfig)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(got, []proto.Record{{"url": "0.com", "vector": []float64{1, 2, 3}}}); diff != nil {
		t.Error(diff)
	}
	if _, ok := in[0]["vector"]; ok {
		t.Error("input record was modified")
	}
}

func TestSum(t *testing.T) {
	batch := []proto.Record{
		{"vector": []float64{1, 2, 3}},
		{"vector": []interface{}{float64(4), float64(5)}},
	}
	got, err := fns.Sum(batch, noConfig)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(got, []proto.Record{{"sum_vector": 15.0, "count": 2}}); diff != nil {
		t.Error(diff)
	}

	if _, err := fns.Sum([]proto.Record{{"vector": []interface{}{"x"}}}, noConfig); err == nil {
		t.Error("no error for a non-numeric vector")
	}
	if _, err := fns.Sum(test.InitRecords(1), noConfig); err == nil {
		t.Error("no error for a record without a vector")
	}
}

func TestTag(t *testing.T) {
	cfg := link.NewConfig(map[string]interface{}{"field": "source", "value": "crawler"})
	fn, err := fns.Builtin.Make("tag", cfg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fn(test.InitRecords(2), cfg)
	if err != nil {
		t.Fatal(err)
	}
	expect := []proto.Record{
		{"idx": 0, "source": "crawler"},
		{"idx": 1, "source": "crawler"},
	}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}
}

func TestRetryWrapped(t *testing.T) {
	// A failing built-in still fails after retries.
	cfg := link.NewConfig(map[string]interface{}{
		fns.CFG_RETRY_TRIES: 2,
		fns.CFG_RETRY_WAIT:  "1ms",
	})
	fn, err := fns.Builtin.Make("sum", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fn(test.InitRecords(1), cfg); err == nil {
		t.Error("no error, expected sum to fail on every try")
	}
}

func TestCrawlerGraph(t *testing.T) {
	// urls -> expand -> vectorize -> sum, run to quiescence.
	for _, concurrent := range []bool{false, true} {
		lk := linker.New(linker.Options{Concurrent: concurrent})
		for _, l := range []struct {
			name, in, out, fn string
			batchSize         int
		}{
			{"crawler", "urls", "links", "expand", 10},
			{"transform", "links", "vecs", "vectorize", 10},
			{"sum", "vecs", "mean_vec", "sum", 10000},
		} {
			fn, err := fns.Builtin.Make(l.fn, noConfig)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := lk.Link(l.name, l.in, l.out, l.batchSize, fn, noConfig); err != nil {
				t.Fatal(err)
			}
		}
		lk.Seed("crawler", test.InitURLs(5))

		if err := lk.RunUntilComplete(context.Background()); err != nil {
			t.Fatal(err)
		}

		out, _ := lk.Drain("sum", 100)
		total := 0.0
		count := 0
		for _, r := range out {
			total += r["sum_vector"].(float64)
			count += r["count"].(int)
		}
		if total != 60.0 || count != 10 {
			t.Errorf("concurrent=%t: sum = %f over %d records, expected 60 over 10", concurrent, total, count)
		}
	}
}
