// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/envoyproxy/filtertest/examples/filters"
	"github.com/envoyproxy/filtertest/sdk"
)

var (
	httpFilters = map[string]sdk.HTTPFilterConfigFactory{
		"apikey": filters.NewAPIKey,
		"redact": filters.NewRedact,
	}
	networkFilters = map[string]sdk.NetworkFilterConfigFactory{
		"tcpguard": filters.NewTCPGuard,
	}
)

type (
	// scenario is the content of a scenario file.
	//
	//	filter: apikey
	//	config:
	//	  keys: [secret]
	//	events:
	//	  - request_headers:
	//	      headers: [{name: x-api-key, value: secret}]
	//	      end_of_stream: true
	scenario struct {
		Filter string `yaml:"filter"`
		// Config is either a mapping or a block string holding the filter configuration.
		Config yaml.Node `yaml:"config"`
		Events []event   `yaml:"events"`
	}
	// event is a single step of a scenario. Exactly one field must be set.
	event struct {
		RequestHeaders   *headersEvent  `yaml:"request_headers"`
		RequestData      *dataEvent     `yaml:"request_data"`
		RequestTrailers  *trailersEvent `yaml:"request_trailers"`
		ResponseHeaders  *headersEvent  `yaml:"response_headers"`
		ResponseData     *dataEvent     `yaml:"response_data"`
		ResponseTrailers *trailersEvent `yaml:"response_trailers"`

		Connect         bool       `yaml:"connect"`
		DownstreamData  *dataEvent `yaml:"downstream_data"`
		DownstreamClose bool       `yaml:"downstream_close"`
		UpstreamData    *dataEvent `yaml:"upstream_data"`
		UpstreamClose   bool       `yaml:"upstream_close"`

		// Advance moves the fake clock forward, e.g. "1.5s".
		Advance time.Duration `yaml:"advance"`
	}
	header struct {
		Name  string `yaml:"name"`
		Value string `yaml:"value"`
	}
	headersEvent struct {
		Headers     []header `yaml:"headers"`
		EndOfStream bool     `yaml:"end_of_stream"`
	}
	dataEvent struct {
		Data        string `yaml:"data"`
		EndOfStream bool   `yaml:"end_of_stream"`
	}
	trailersEvent struct {
		Trailers []header `yaml:"trailers"`
	}
)

var (
	httpEvents    = []string{"request_headers", "request_data", "request_trailers", "response_headers", "response_data", "response_trailers", "advance"}
	networkEvents = []string{"connect", "downstream_data", "downstream_close", "upstream_data", "upstream_close", "advance"}
)

func decodeScenario(r io.Reader) (*scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty scenario")
		}
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if sc.Filter == "" {
		return nil, errors.New("filter is required")
	}
	var allowed []string
	switch {
	case httpFilters[sc.Filter] != nil:
		allowed = httpEvents
	case networkFilters[sc.Filter] != nil:
		allowed = networkEvents
	default:
		return nil, fmt.Errorf("unknown filter %q", sc.Filter)
	}
	for i := range sc.Events {
		name, err := sc.Events[i].name()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if !slices.Contains(allowed, name) {
			return nil, fmt.Errorf("event %d: %s is not valid for filter %s", i, name, sc.Filter)
		}
	}
	return &sc, nil
}

// config returns the raw filter configuration.
func (s *scenario) config() ([]byte, error) {
	switch s.Config.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		return []byte(s.Config.Value), nil
	default:
		out, err := yaml.Marshal(&s.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter config: %w", err)
		}
		return out, nil
	}
}

func (e *event) name() (string, error) {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(e.RequestHeaders != nil, "request_headers")
	add(e.RequestData != nil, "request_data")
	add(e.RequestTrailers != nil, "request_trailers")
	add(e.ResponseHeaders != nil, "response_headers")
	add(e.ResponseData != nil, "response_data")
	add(e.ResponseTrailers != nil, "response_trailers")
	add(e.Connect, "connect")
	add(e.DownstreamData != nil, "downstream_data")
	add(e.DownstreamClose, "downstream_close")
	add(e.UpstreamData != nil, "upstream_data")
	add(e.UpstreamClose, "upstream_close")
	add(e.Advance != 0, "advance")
	if len(names) != 1 {
		return "", fmt.Errorf("exactly one event must be set, got %d %v", len(names), names)
	}
	return names[0], nil
}

func pairs(hs []header) [][2]string {
	out := make([][2]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, [2]string{h.Name, h.Value})
	}
	return out
}

func fromPairs(hs [][2]string) []header {
	if len(hs) == 0 {
		return nil
	}
	out := make([]header, 0, len(hs))
	for _, h := range hs {
		out = append(out, header{Name: h[0], Value: h[1]})
	}
	return out
}
