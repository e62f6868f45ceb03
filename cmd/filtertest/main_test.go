// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func Test_doMain(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		rf     replayFn
		expOut string
	}{
		{
			name:   "version",
			args:   []string{"version"},
			expOut: "filtertest: dev\n",
		},
		{
			name: "replay",
			args: []string{"replay", "--metrics", "scenario.yaml"},
			rf: func(c cmdReplay, _, _ io.Writer) error {
				cwd, err := os.Getwd()
				require.NoError(t, err)
				require.Equal(t, filepath.Join(cwd, "scenario.yaml"), c.Path)
				require.True(t, c.Metrics)
				require.False(t, c.Debug)
				return nil
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			doMain(out, os.Stderr, tt.args, tt.rf)
			require.Equal(t, tt.expOut, out.String())
		})
	}
}

func Test_replay(t *testing.T) {
	yes := true
	tests := []struct {
		scenario string
		exp      report
	}{
		{
			scenario: "apikey.yaml",
			exp: report{
				Filter: "apikey",
				Events: []eventReport{{Event: "request_headers", Status: "StopIteration"}},
				Downstream: peerReport{
					Headers: []header{
						{Name: "www-authenticate", Value: `ApiKey realm="filtertest"`},
						{Name: ":status", Value: "401"},
					},
					Body:        "unauthorized",
					EndOfStream: true,
				},
				LocalReply: &localReply{StatusCode: 401, Body: "unauthorized"},
				Complete:   true,
				Logs:       []string{"INFO rejecting request filter=apikey reason=invalid"},
			},
		},
		{
			scenario: "redact.yaml",
			exp: report{
				Filter: "redact",
				Events: []eventReport{
					{Event: "request_headers", Status: "Continue"},
					{Event: "request_data", Status: "StopIterationAndBuffer"},
					{Event: "request_data", Status: "Continue"},
					{Event: "response_headers", Status: "Continue"},
				},
				Downstream: peerReport{
					Headers:     []header{{Name: ":status", Value: "200"}},
					EndOfStream: true,
				},
				Upstream: peerReport{
					Headers:     []header{{Name: ":path", Value: "/v1/users"}},
					Body:        `{"user":{"name":"bob","ssn":"***"}}`,
					EndOfStream: true,
				},
				Complete: true,
				Logs:     []string{"DEBUG redacted body filter=redact direction=request fields=1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			out := &bytes.Buffer{}
			err := replay(cmdReplay{Path: filepath.Join("testdata", tt.scenario)}, out, io.Discard)
			require.NoError(t, err)

			var got report
			require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
			require.Equal(t, tt.exp, got)
		})
	}

	t.Run("tcpguard.yaml", func(t *testing.T) {
		out := &bytes.Buffer{}
		err := replay(cmdReplay{Path: filepath.Join("testdata", "tcpguard.yaml")}, out, io.Discard)
		require.NoError(t, err)

		var got report
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
		require.Equal(t, []eventReport{
			{Event: "connect", Status: "Continue"},
			{Event: "downstream_data", Status: "StopIteration"},
			{Event: "advance"},
			{Event: "downstream_data", Status: "StopIteration"},
			{Event: "upstream_data", Status: "StopIteration"},
			{Event: "downstream_close"},
		}, got.Events)
		require.Equal(t, peerReport{Connected: &yes}, got.Upstream)
		require.Equal(t, peerReport{Connected: &yes}, got.Downstream)
		require.Contains(t, got.Logs, "INFO blocking connection filter=tcpguard")
	})
}

func Test_replay_metrics(t *testing.T) {
	out := &bytes.Buffer{}
	err := replay(cmdReplay{Path: filepath.Join("testdata", "apikey.yaml"), Metrics: true}, out, io.Discard)
	require.NoError(t, err)
	require.Contains(t, out.String(), "# TYPE apikey_rejected_total counter")
	require.NotContains(t, out.String(), "_total_total")
	require.Contains(t, out.String(), `reason="invalid"`)
}

func Test_replay_debug(t *testing.T) {
	stderr := &bytes.Buffer{}
	err := replay(cmdReplay{Path: filepath.Join("testdata", "apikey.yaml"), Debug: true}, io.Discard, stderr)
	require.NoError(t, err)
	require.Contains(t, stderr.String(), "simulating request headers")
	require.Contains(t, stderr.String(), "local reply sent")
}

func Test_replay_errors(t *testing.T) {
	err := replay(cmdReplay{Path: filepath.Join("testdata", "invalid.yaml")}, io.Discard, io.Discard)
	require.EqualError(t, err,
		"event 0 (request_data): invalid scenario: cannot send request body before request headers")

	err = replay(cmdReplay{Path: filepath.Join("testdata", "missing.yaml")}, io.Discard, io.Discard)
	require.ErrorContains(t, err, "error opening scenario")
}

func Test_decodeScenario(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		expErr string
	}{
		{name: "empty", in: "", expErr: "empty scenario"},
		{name: "no filter", in: "events: []", expErr: "filter is required"},
		{name: "unknown filter", in: "filter: nope", expErr: `unknown filter "nope"`},
		{name: "unknown field", in: "filter: apikey\nnope: 1", expErr: "failed to decode scenario"},
		{
			name:   "two events",
			in:     "filter: apikey\nevents:\n  - {request_data: {data: a}, advance: 1s}",
			expErr: "event 0: exactly one event must be set, got 2 [request_data advance]",
		},
		{
			name:   "no event",
			in:     "filter: apikey\nevents:\n  - {}",
			expErr: "event 0: exactly one event must be set, got 0 []",
		},
		{
			name:   "wrong kind",
			in:     "filter: tcpguard\nevents:\n  - {request_data: {data: a}}",
			expErr: "event 0: request_data is not valid for filter tcpguard",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeScenario(strings.NewReader(tt.in))
			require.ErrorContains(t, err, tt.expErr)
		})
	}
}

func Test_scenarioConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
		exp  string
	}{
		{name: "none", in: "filter: apikey", exp: ""},
		{name: "mapping", in: "filter: apikey\nconfig:\n  keys: [a]", exp: "keys: [a]\n"},
		{name: "block string", in: "filter: apikey\nconfig: |\n  keys: [b]\n", exp: "keys: [b]\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sc, err := decodeScenario(strings.NewReader(tc.in))
			require.NoError(t, err)
			got, err := sc.config()
			require.NoError(t, err)
			require.Equal(t, tc.exp, string(got))
		})
	}
}
