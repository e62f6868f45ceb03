// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import (
	"github.com/envoyproxy/filtertest/internal/buffer"
	"github.com/envoyproxy/filtertest/sdk"
)

// httpView is the sdk.EnvoyHTTPFilter handed to the filter for the duration of a single hook.
type httpView struct {
	s    *HTTPStream
	live bool
}

var _ sdk.EnvoyHTTPFilter = (*httpView)(nil)

func (v *httpView) stream() *HTTPStream {
	if !v.live {
		defect("EnvoyHTTPFilter used after the filter callback returned")
	}
	return v.s
}

// RequestHeaders implements [sdk.EnvoyHTTPFilter].
func (v *httpView) RequestHeaders() sdk.HeaderMap { return v.stream().request.headers }

// RequestTrailers implements [sdk.EnvoyHTTPFilter].
func (v *httpView) RequestTrailers() sdk.HeaderMap { return v.stream().request.trailers }

// ResponseHeaders implements [sdk.EnvoyHTTPFilter].
func (v *httpView) ResponseHeaders() sdk.HeaderMap { return v.stream().response.headers }

// ResponseTrailers implements [sdk.EnvoyHTTPFilter].
func (v *httpView) ResponseTrailers() sdk.HeaderMap { return v.stream().response.trailers }

// RequestBody implements [sdk.EnvoyHTTPFilter].
func (v *httpView) RequestBody(offset, maxSize int) ([]byte, error) {
	return buffer.Read(*v.stream().request.body(), offset, maxSize)
}

// MutateRequestBody implements [sdk.EnvoyHTTPFilter].
func (v *httpView) MutateRequestBody(t sdk.Transform) error {
	return mutate(v.stream().request.body(), t)
}

// ResponseBody implements [sdk.EnvoyHTTPFilter].
func (v *httpView) ResponseBody(offset, maxSize int) ([]byte, error) {
	return buffer.Read(*v.stream().response.body(), offset, maxSize)
}

// MutateResponseBody implements [sdk.EnvoyHTTPFilter].
func (v *httpView) MutateResponseBody(t sdk.Transform) error {
	return mutate(v.stream().response.body(), t)
}

// SendResponse implements [sdk.EnvoyHTTPFilter].
func (v *httpView) SendResponse(statusCode uint32, headers [][2]string, body []byte) error {
	v.stream().sendResponse(statusCode, headers, body)
	return nil
}

// ResumeRequest implements [sdk.EnvoyHTTPFilter].
func (v *httpView) ResumeRequest() error { return v.stream().unsupportedCall("resume_request") }

// ResumeResponse implements [sdk.EnvoyHTTPFilter].
func (v *httpView) ResumeResponse() error { return v.stream().unsupportedCall("resume_response") }

// ClearRouteCache implements [sdk.EnvoyHTTPFilter].
func (v *httpView) ClearRouteCache() error { return v.stream().unsupportedCall("clear_route_cache") }

func mutate(buf *[]byte, t sdk.Transform) error {
	out, err := buffer.Apply(*buf, t)
	if err != nil {
		return err
	}
	*buf = out
	return nil
}
