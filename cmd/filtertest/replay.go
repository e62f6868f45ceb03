// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/envoyproxy/filtertest/filtertest"
	"github.com/envoyproxy/filtertest/sdk"
)

type replayFn func(cmd cmdReplay, stdout, stderr io.Writer) error

type (
	report struct {
		Filter     string        `yaml:"filter"`
		Events     []eventReport `yaml:"events"`
		Downstream peerReport    `yaml:"downstream"`
		Upstream   peerReport    `yaml:"upstream"`
		LocalReply *localReply   `yaml:"local_reply,omitempty"`
		Complete   bool          `yaml:"complete,omitempty"`
		Logs       []string      `yaml:"logs,omitempty"`
	}
	eventReport struct {
		Event  string `yaml:"event"`
		Status string `yaml:"status,omitempty"`
	}
	peerReport struct {
		Connected   *bool    `yaml:"connected,omitempty"`
		Headers     []header `yaml:"headers,omitempty"`
		Body        string   `yaml:"body,omitempty"`
		Trailers    []header `yaml:"trailers,omitempty"`
		EndOfStream bool     `yaml:"end_of_stream"`
	}
	localReply struct {
		StatusCode uint32 `yaml:"status_code"`
		Body       string `yaml:"body,omitempty"`
	}
)

func replay(c cmdReplay, stdout, stderr io.Writer) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("error opening scenario %s: %w", c.Path, err)
	}
	defer f.Close()
	sc, err := decodeScenario(f)
	if err != nil {
		return fmt.Errorf("error reading scenario %s: %w", c.Path, err)
	}
	config, err := sc.config()
	if err != nil {
		return err
	}

	var opts []filtertest.Option
	if c.Debug {
		opts = append(opts, filtertest.WithLogger(
			slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	var registry *prometheus.Registry
	if c.Metrics {
		registry = prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		opts = append(opts, filtertest.WithMetricReader(exporter))
	}

	var rep *report
	if factory, ok := httpFilters[sc.Filter]; ok {
		rep, err = replayHTTP(sc, config, factory, opts)
	} else {
		rep, err = replayTCP(sc, config, networkFilters[sc.Filter], opts)
	}
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err = stdout.Write(out); err != nil {
		return err
	}
	if registry != nil {
		return writeMetrics(stdout, registry)
	}
	return nil
}

func replayHTTP(sc *scenario, config []byte, factory sdk.HTTPFilterConfigFactory, opts []filtertest.Option) (*report, error) {
	l, err := filtertest.NewListener(opts...).HTTP().Filter(factory).Configure(config)
	if err != nil {
		return nil, err
	}
	s := l.NewHTTPStream()
	rep := &report{Filter: sc.Filter}
	for i := range sc.Events {
		ev := &sc.Events[i]
		name, _ := ev.name()
		status, err := runHTTPEvent(l, s, name, ev)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, name, err)
		}
		rep.Events = append(rep.Events, eventReport{Event: name, Status: status})
	}

	rep.Downstream = httpPeerReport(s.Downstream())
	rep.Upstream = httpPeerReport(s.Upstream())
	if lr, ok := s.LocalReply(); ok {
		rep.LocalReply = &localReply{StatusCode: lr.StatusCode, Body: string(lr.Body)}
	}
	rep.Complete = s.Complete()
	rep.Logs = logLines(l.Logs())
	return rep, nil
}

func runHTTPEvent(l *filtertest.HTTPListener, s *filtertest.HTTPStream, name string, ev *event) (status string, err error) {
	defer recoverViolation(&err)
	var st fmt.Stringer
	switch name {
	case "request_headers":
		st, err = s.SimulateHeadersFromDownstream(pairs(ev.RequestHeaders.Headers), ev.RequestHeaders.EndOfStream)
	case "request_data":
		st, err = s.SimulateDataFromDownstream([]byte(ev.RequestData.Data), ev.RequestData.EndOfStream)
	case "request_trailers":
		st, err = s.SimulateTrailersFromDownstream(pairs(ev.RequestTrailers.Trailers))
	case "response_headers":
		st, err = s.SimulateHeadersFromUpstream(pairs(ev.ResponseHeaders.Headers), ev.ResponseHeaders.EndOfStream)
	case "response_data":
		st, err = s.SimulateDataFromUpstream([]byte(ev.ResponseData.Data), ev.ResponseData.EndOfStream)
	case "response_trailers":
		st, err = s.SimulateTrailersFromUpstream(pairs(ev.ResponseTrailers.Trailers))
	case "advance":
		l.Clock().Step(ev.Advance)
		return "", nil
	default:
		panic("unreachable")
	}
	if err != nil {
		return "", err
	}
	return st.String(), nil
}

func replayTCP(sc *scenario, config []byte, factory sdk.NetworkFilterConfigFactory, opts []filtertest.Option) (*report, error) {
	l, err := filtertest.NewListener(opts...).TCP().NetworkFilter(factory).Configure(config)
	if err != nil {
		return nil, err
	}
	c := l.NewConnection()
	rep := &report{Filter: sc.Filter}
	for i := range sc.Events {
		ev := &sc.Events[i]
		name, _ := ev.name()
		status, err := runTCPEvent(l, c, name, ev)
		if err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, name, err)
		}
		rep.Events = append(rep.Events, eventReport{Event: name, Status: status})
	}

	rep.Downstream = tcpPeerReport(c.Downstream())
	rep.Upstream = tcpPeerReport(c.Upstream())
	rep.Logs = logLines(l.Logs())
	return rep, nil
}

func runTCPEvent(l *filtertest.TCPListener, c *filtertest.Connection, name string, ev *event) (status string, err error) {
	defer recoverViolation(&err)
	var st fmt.Stringer
	switch name {
	case "connect":
		st, err = c.SimulateConnect()
	case "downstream_data":
		st, err = c.SimulateDataFromDownstream([]byte(ev.DownstreamData.Data), ev.DownstreamData.EndOfStream)
	case "downstream_close":
		return "", c.SimulateCloseFromDownstream()
	case "upstream_data":
		st, err = c.SimulateDataFromUpstream([]byte(ev.UpstreamData.Data), ev.UpstreamData.EndOfStream)
	case "upstream_close":
		return "", c.SimulateCloseFromUpstream()
	case "advance":
		l.Clock().Step(ev.Advance)
		return "", nil
	default:
		panic("unreachable")
	}
	if err != nil {
		return "", err
	}
	return st.String(), nil
}

// recoverViolation turns the protocol violation raised by an invalid scenario into an error.
// Any other panic is a bug and is propagated.
func recoverViolation(err *error) {
	r := recover()
	if r == nil {
		return
	}
	var v *filtertest.ProtocolViolation
	if e, ok := r.(error); ok && errors.As(e, &v) {
		*err = fmt.Errorf("invalid scenario: %w", v)
		return
	}
	panic(r)
}

func httpPeerReport(p *filtertest.HTTPPeer) peerReport {
	return peerReport{
		Headers:     fromPairs(p.Headers()),
		Body:        string(p.Body()),
		Trailers:    fromPairs(p.Trailers()),
		EndOfStream: p.ReceivedEndOfStream(),
	}
}

func tcpPeerReport(p *filtertest.TCPPeer) peerReport {
	connected := p.ReceivedConnect()
	return peerReport{
		Connected:   &connected,
		Body:        string(p.Bytes()),
		EndOfStream: p.ReceivedClose(),
	}
}

func logLines(entries []filtertest.LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Level.String()+" "+e.Message)
	}
	return out
}

func writeMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err = expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
