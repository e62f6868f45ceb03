// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envoyproxy/filtertest/sdk"
)

// recordingFilter is an sdk.HTTPFilter whose hooks can be overridden per test.
// Hooks left nil return Continue. Every invocation is recorded in calls.
type recordingFilter struct {
	calls     []string
	completed int

	requestHeaders   func(e sdk.EnvoyHTTPFilter, endOfStream bool) (sdk.HeadersStatus, error)
	requestBody      func(e sdk.EnvoyHTTPFilter, size int, endOfStream bool) (sdk.BodyStatus, error)
	requestTrailers  func(e sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error)
	responseHeaders  func(e sdk.EnvoyHTTPFilter, endOfStream bool) (sdk.HeadersStatus, error)
	responseBody     func(e sdk.EnvoyHTTPFilter, size int, endOfStream bool) (sdk.BodyStatus, error)
	responseTrailers func(e sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error)
}

func (f *recordingFilter) RequestHeaders(e sdk.EnvoyHTTPFilter, endOfStream bool) (sdk.HeadersStatus, error) {
	f.calls = append(f.calls, "request_headers")
	if f.requestHeaders == nil {
		return sdk.HeadersStatusContinue, nil
	}
	return f.requestHeaders(e, endOfStream)
}

func (f *recordingFilter) RequestBody(e sdk.EnvoyHTTPFilter, size int, endOfStream bool) (sdk.BodyStatus, error) {
	f.calls = append(f.calls, "request_body")
	if f.requestBody == nil {
		return sdk.BodyStatusContinue, nil
	}
	return f.requestBody(e, size, endOfStream)
}

func (f *recordingFilter) RequestTrailers(e sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error) {
	f.calls = append(f.calls, "request_trailers")
	if f.requestTrailers == nil {
		return sdk.TrailersStatusContinue, nil
	}
	return f.requestTrailers(e)
}

func (f *recordingFilter) ResponseHeaders(e sdk.EnvoyHTTPFilter, endOfStream bool) (sdk.HeadersStatus, error) {
	f.calls = append(f.calls, "response_headers")
	if f.responseHeaders == nil {
		return sdk.HeadersStatusContinue, nil
	}
	return f.responseHeaders(e, endOfStream)
}

func (f *recordingFilter) ResponseBody(e sdk.EnvoyHTTPFilter, size int, endOfStream bool) (sdk.BodyStatus, error) {
	f.calls = append(f.calls, "response_body")
	if f.responseBody == nil {
		return sdk.BodyStatusContinue, nil
	}
	return f.responseBody(e, size, endOfStream)
}

func (f *recordingFilter) ResponseTrailers(e sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error) {
	f.calls = append(f.calls, "response_trailers")
	if f.responseTrailers == nil {
		return sdk.TrailersStatusContinue, nil
	}
	return f.responseTrailers(e)
}

func (f *recordingFilter) OnStreamComplete() { f.completed++ }

// recordingNetworkFilter is the sdk.NetworkFilter counterpart of recordingFilter.
type recordingNetworkFilter struct {
	calls []string

	newConnection   func(e sdk.EnvoyNetworkFilter) (sdk.NetworkStatus, error)
	downstreamData  func(e sdk.EnvoyNetworkFilter, size int, endOfStream bool) (sdk.NetworkStatus, error)
	downstreamClose func(e sdk.EnvoyNetworkFilter, peer sdk.PeerType) error
	upstreamData    func(e sdk.EnvoyNetworkFilter, size int, endOfStream bool) (sdk.NetworkStatus, error)
	upstreamClose   func(e sdk.EnvoyNetworkFilter, peer sdk.PeerType) error
}

func (f *recordingNetworkFilter) NewConnection(e sdk.EnvoyNetworkFilter) (sdk.NetworkStatus, error) {
	f.calls = append(f.calls, "new_connection")
	if f.newConnection == nil {
		return sdk.NetworkStatusContinue, nil
	}
	return f.newConnection(e)
}

func (f *recordingNetworkFilter) DownstreamData(e sdk.EnvoyNetworkFilter, size int, endOfStream bool) (sdk.NetworkStatus, error) {
	f.calls = append(f.calls, "downstream_data")
	if f.downstreamData == nil {
		return sdk.NetworkStatusContinue, nil
	}
	return f.downstreamData(e, size, endOfStream)
}

func (f *recordingNetworkFilter) DownstreamClose(e sdk.EnvoyNetworkFilter, peer sdk.PeerType) error {
	f.calls = append(f.calls, "downstream_close")
	if f.downstreamClose == nil {
		return nil
	}
	return f.downstreamClose(e, peer)
}

func (f *recordingNetworkFilter) UpstreamData(e sdk.EnvoyNetworkFilter, size int, endOfStream bool) (sdk.NetworkStatus, error) {
	f.calls = append(f.calls, "upstream_data")
	if f.upstreamData == nil {
		return sdk.NetworkStatusContinue, nil
	}
	return f.upstreamData(e, size, endOfStream)
}

func (f *recordingNetworkFilter) UpstreamClose(e sdk.EnvoyNetworkFilter, peer sdk.PeerType) error {
	f.calls = append(f.calls, "upstream_close")
	if f.upstreamClose == nil {
		return nil
	}
	return f.upstreamClose(e, peer)
}

func staticHTTPFactory(f sdk.HTTPFilter) sdk.HTTPFilterConfigFactory {
	return func([]byte, sdk.Env) (sdk.HTTPFilterFactory, error) {
		return sdk.HTTPFilterFactoryFunc(func(sdk.EnvoyHTTPFilter) (sdk.HTTPFilter, error) { return f, nil }), nil
	}
}

func staticNetworkFactory(f sdk.NetworkFilter) sdk.NetworkFilterConfigFactory {
	return func([]byte, sdk.Env) (sdk.NetworkFilterFactory, error) {
		return sdk.NetworkFilterFactoryFunc(func(sdk.EnvoyNetworkFilter) (sdk.NetworkFilter, error) { return f, nil }), nil
	}
}

func newTestStream(t *testing.T, f sdk.HTTPFilter) *HTTPStream {
	t.Helper()
	l, err := NewListener().HTTP().Filter(staticHTTPFactory(f)).Configure(nil)
	require.NoError(t, err)
	return l.NewHTTPStream()
}

func newTestConnection(t *testing.T, f sdk.NetworkFilter) *Connection {
	t.Helper()
	l, err := NewListener().TCP().NetworkFilter(staticNetworkFactory(f)).Configure(nil)
	require.NoError(t, err)
	return l.NewConnection()
}

// requestHeaders is a minimal request.
var requestHeaders = [][2]string{{":method", "POST"}, {":path", "/"}, {":authority", "example.com"}}

// startResponse forwards request headers and sends response headers, both without end of stream.
func startResponse(t *testing.T, s *HTTPStream) {
	t.Helper()
	_, err := s.SimulateHeadersFromDownstream(requestHeaders, false)
	require.NoError(t, err)
	_, err = s.SimulateHeadersFromUpstream([][2]string{{":status", "200"}}, false)
	require.NoError(t, err)
}
