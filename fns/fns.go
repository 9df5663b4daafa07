// Copyright 2019, Square, Inc.

// Package fns implements the built-in batch functions and a factory to make
// them by name. The server uses the factory to turn configured links into
// registered links. Callers embedding a linker can register any link.BatchFn
// directly and don't need this package.
package fns

import (
	"errors"
	"fmt"
	"time"

	serr "github.com/square/spinlink/errors"
	"github.com/square/spinlink/link"
	"github.com/square/spinlink/proto"
)

var (
	ErrUnknownFnType = errors.New("unknown batch function type")
)

// Config keys read by the factory, not by a batch function.
const (
	CFG_RETRY_TRIES = "retry_tries" // int, > 1 to retry a failed batch
	CFG_RETRY_WAIT  = "retry_wait"  // duration string, wait between tries
)

// A Factory makes a batch function of the given type. The config is the one
// the link is registered with; the factory may validate it.
type Factory interface {
	Make(fnType string, cfg link.Config) (link.BatchFn, error)
}

// Builtin is the Factory of built-in batch functions:
//
//   identity   returns the batch unchanged
//   expand     each {"url": u} becomes one record per page, {"url": u/page}
//   vectorize  adds "vector": [1,2,3] to each record
//   sum        one record {"sum_vector": s, "count": n} per batch
//   tag        sets field "field" to "value" in each record
//
// If the config has retry_tries > 1, the function is wrapped with
// link.WithRetry.
var Builtin Factory = builtin{}

type builtin struct{}

func (builtin) Make(fnType string, cfg link.Config) (link.BatchFn, error) {
	var fn link.BatchFn
	switch fnType {
	case "identity":
		fn = Identity
	case "expand":
		fn = Expand
	case "vectorize":
		fn = Vectorize
	case "sum":
		fn = Sum
	case "tag":
		if cfg.String("field", "") == "" {
			return nil, serr.NewConfigError("tag: config field is required")
		}
		fn = Tag
	default:
		return nil, ErrUnknownFnType
	}

	tries := cfg.Int(CFG_RETRY_TRIES, 1)
	if tries <= 1 {
		return fn, nil
	}
	wait, err := time.ParseDuration(cfg.String(CFG_RETRY_WAIT, "0s"))
	if err != nil {
		return nil, serr.NewConfigError("%s: invalid %s: %s", fnType, CFG_RETRY_WAIT, err)
	}
	return link.WithRetry(fn, tries, wait), nil
}

// //////////////////////////////////////////////////////////////////////////
// Batch functions
// //////////////////////////////////////////////////////////////////////////

func Identity(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	return batch, nil
}

// Expand makes one record per page for each record's "url". Pages are config
// "pages", default a.html and b.html.
func Expand(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	pages := cfg.Strings("pages", []string{"a.html", "b.html"})
	out := make([]proto.Record, 0, len(batch)*len(pages))
	for _, r := range batch {
		url, ok := r["url"].(string)
		if !ok {
			return nil, fmt.Errorf("record has no url: %v", r)
		}
		for _, page := range pages {
			out = append(out, proto.Record{"url": url + "/" + page})
		}
	}
	return out, nil
}

// Vectorize copies each record and adds a "vector".
func Vectorize(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	out := make([]proto.Record, len(batch))
	for i, r := range batch {
		v := proto.Record{}
		for k, val := range r {
			v[k] = val
		}
		v["vector"] = []float64{1, 2, 3}
		out[i] = v
	}
	return out, nil
}

// Sum adds up every element of every record's "vector".
func Sum(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	sum := 0.0
	for _, r := range batch {
		switch vec := r["vector"].(type) {
		case []float64:
			for _, f := range vec {
				sum += f
			}
		case []interface{}: // decoded from JSON
			for _, e := range vec {
				f, ok := e.(float64)
				if !ok {
					return nil, fmt.Errorf("vector element %v is %T, expected a number", e, e)
				}
				sum += f
			}
		default:
			return nil, fmt.Errorf("record has no vector: %v", r)
		}
	}
	return []proto.Record{{"sum_vector": sum, "count": len(batch)}}, nil
}

// Tag copies each record and sets config "field" to config "value".
func Tag(batch []proto.Record, cfg link.Config) ([]proto.Record, error) {
	field := cfg.String("field", "")
	if field == "" {
		return nil, fmt.Errorf("config field not set")
	}
	value, _ := cfg.Get("value")
	out := make([]proto.Record, len(batch))
	for i, r := range batch {
		t := proto.Record{}
		for k, val := range r {
			t[k] = val
		}
		t[field] = value
		out[i] = t
	}
	return out, nil
}
