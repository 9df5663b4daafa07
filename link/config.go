// Copyright 2019, Square, Inc.

package link

import (
	"sort"
)

// Config is the read-only configuration given to every invocation of a link's
// BatchFn. It is copied when made, so changes to the source map after
// registration are not seen. The copy is shallow: nested maps and slices are
// shared and must not be modified.
type Config struct {
	vals map[string]interface{}
}

// NewConfig makes a Config from a copy of vals. vals can be nil.
func NewConfig(vals map[string]interface{}) Config {
	c := Config{vals: make(map[string]interface{}, len(vals))}
	for k, v := range vals {
		c.vals[k] = v
	}
	return c
}

// Get returns the value for key and whether it was set.
func (c Config) Get(key string) (interface{}, bool) {
	v, ok := c.vals[key]
	return v, ok
}

// String returns the value for key if it's a string, else def.
func (c Config) String(key, def string) string {
	if s, ok := c.vals[key].(string); ok {
		return s
	}
	return def
}

// Int returns the value for key if it's a number, else def. Floats are
// truncated, which is what JSON-decoded configs need.
func (c Config) Int(key string, def int) int {
	switch v := c.vals[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the value for key if it's a bool, else def.
func (c Config) Bool(key string, def bool) bool {
	if b, ok := c.vals[key].(bool); ok {
		return b
	}
	return def
}

// Strings returns the value for key if it's a list of strings, else def. Lists
// decoded from YAML or JSON ([]interface{}) are accepted if every element is a
// string.
func (c Config) Strings(key string, def []string) []string {
	switch v := c.vals[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return def
			}
			out = append(out, s)
		}
		return out
	}
	return def
}

// Keys returns all keys, sorted.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.vals))
	for k := range c.vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (c Config) Len() int {
	return len(c.vals)
}

// Map returns a copy of the config as a map.
func (c Config) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(c.vals))
	for k, v := range c.vals {
		m[k] = v
	}
	return m
}
