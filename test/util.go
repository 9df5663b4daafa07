// Copyright 2017-2019, Square, Inc.

// Package test provides helper functions for tests.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/square/spinlink/proto"
)

// MakeHTTPRequest is a helper function for making an http request. The response
// body of the http request is unmarshalled into the struct pointed to by the
// respStruct argument (if it's not nil). The status code of the response and
// the response headers are returned.
func MakeHTTPRequest(httpVerb, url string, payload []byte, respStruct interface{}) (int, http.Header, error) {
	var statusCode int
	// Make the http request.
	req, err := http.NewRequest(httpVerb, url, bytes.NewReader(payload))
	if err != nil {
		return statusCode, http.Header{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := (http.DefaultClient).Do(req)
	if err != nil {
		return statusCode, http.Header{}, err
	}
	defer res.Body.Close()

	if respStruct != nil {
		decoder := json.NewDecoder(res.Body)
		err = decoder.Decode(respStruct)
		if err != nil {
			return res.StatusCode, res.Header, fmt.Errorf("error decoding response body: %s", err)
		}
	}

	return res.StatusCode, res.Header, nil
}

// InitRecords makes count records like {"idx": 0}, {"idx": 1}, ...
func InitRecords(count int) []proto.Record {
	records := make([]proto.Record, count)
	for i := 0; i < count; i++ {
		records[i] = proto.Record{"idx": i}
	}
	return records
}

// InitURLs makes count records like {"url": "0.com"}, {"url": "1.com"}, ...
func InitURLs(count int) []proto.Record {
	records := make([]proto.Record, count)
	for i := 0; i < count; i++ {
		records[i] = proto.Record{"url": fmt.Sprintf("%d.com", i)}
	}
	return records
}
