// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import "strconv"

// HTTPFilterConfigFactory creates an HTTPFilterFactory from the opaque filter configuration
// given to the listener. It is called once per configured listener.
//
// Parsing the configuration is entirely up to the extension. See [UnmarshalConfig] for the common case.
type HTTPFilterConfigFactory func(config []byte, env Env) (HTTPFilterFactory, error)

// HTTPFilterFactory represents a single configured http filter in the filter chain.
// It is used to create HTTPFilter(s) that correspond to each HTTP exchange.
type HTTPFilterFactory interface {
	// NewFilter is called for each new HTTP exchange, right before the first event hook is invoked.
	NewFilter(e EnvoyHTTPFilter) (HTTPFilter, error)
}

// HTTPFilterFactoryFunc adapts a plain function to [HTTPFilterFactory].
type HTTPFilterFactoryFunc func(e EnvoyHTTPFilter) (HTTPFilter, error)

// NewFilter implements [HTTPFilterFactory].
func (f HTTPFilterFactoryFunc) NewFilter(e EnvoyHTTPFilter) (HTTPFilter, error) { return f(e) }

// EnvoyHTTPFilter represents the proxy side of a single HTTP exchange.
// This is passed to each event hook of the HTTPFilter.
//
// **WARNING**: This must not outlive each event hook. Using it after the hook returned
// is a bug in the extension and is reported as such.
type EnvoyHTTPFilter interface {
	// RequestHeaders returns the mutable request header map.
	RequestHeaders() HeaderMap
	// RequestTrailers returns the mutable request trailer map. It is empty until trailers are received.
	RequestTrailers() HeaderMap
	// ResponseHeaders returns the mutable response header map.
	ResponseHeaders() HeaderMap
	// ResponseTrailers returns the mutable response trailer map. It is empty until trailers are received.
	ResponseTrailers() HeaderMap

	// RequestBody reads up to maxSize bytes of the request body starting at offset.
	RequestBody(offset, maxSize int) ([]byte, error)
	// MutateRequestBody applies the transform to the request body.
	MutateRequestBody(t Transform) error
	// ResponseBody reads up to maxSize bytes of the response body starting at offset.
	ResponseBody(offset, maxSize int) ([]byte, error)
	// MutateResponseBody applies the transform to the response body.
	MutateResponseBody(t Transform) error

	// SendResponse sends a local reply to the client. A nil body means the reply has no body.
	// It is meant for the request hooks but is also accepted from the response hooks as long
	// as the response headers were not sent downstream yet. After that it is a protocol violation.
	SendResponse(statusCode uint32, headers [][2]string, body []byte) error
	// ResumeRequest resumes the request processing after it was stopped.
	ResumeRequest() error
	// ResumeResponse resumes the response processing after it was stopped.
	ResumeResponse() error
	// ClearRouteCache clears the route cache for the current request.
	ClearRouteCache() error
}

// HTTPFilter is an interface that represents each HTTP exchange.
//
// This is created for each new HTTP exchange and is discarded when the exchange is completed.
type HTTPFilter interface {
	// RequestHeaders is called when the request headers are received.
	RequestHeaders(e EnvoyHTTPFilter, endOfStream bool) (HeadersStatus, error)
	// RequestBody is called when a chunk of the request body is received.
	// bodySize is the size of the body that is visible through [EnvoyHTTPFilter.RequestBody].
	RequestBody(e EnvoyHTTPFilter, bodySize int, endOfStream bool) (BodyStatus, error)
	// RequestTrailers is called when the request trailers are received.
	RequestTrailers(e EnvoyHTTPFilter) (TrailersStatus, error)
	// ResponseHeaders is called when the response headers are received.
	ResponseHeaders(e EnvoyHTTPFilter, endOfStream bool) (HeadersStatus, error)
	// ResponseBody is called when a chunk of the response body is received.
	ResponseBody(e EnvoyHTTPFilter, bodySize int, endOfStream bool) (BodyStatus, error)
	// ResponseTrailers is called when the response trailers are received.
	ResponseTrailers(e EnvoyHTTPFilter) (TrailersStatus, error)
	// OnStreamComplete is called once the exchange is finished in both directions.
	OnStreamComplete()
}

// NoopHTTPFilter is a no-op implementation of the HTTPFilter interface.
// Embed it to implement only the hooks of interest.
type NoopHTTPFilter struct{}

func (NoopHTTPFilter) RequestHeaders(EnvoyHTTPFilter, bool) (HeadersStatus, error) {
	return HeadersStatusContinue, nil
}

func (NoopHTTPFilter) RequestBody(EnvoyHTTPFilter, int, bool) (BodyStatus, error) {
	return BodyStatusContinue, nil
}

func (NoopHTTPFilter) RequestTrailers(EnvoyHTTPFilter) (TrailersStatus, error) {
	return TrailersStatusContinue, nil
}

func (NoopHTTPFilter) ResponseHeaders(EnvoyHTTPFilter, bool) (HeadersStatus, error) {
	return HeadersStatusContinue, nil
}

func (NoopHTTPFilter) ResponseBody(EnvoyHTTPFilter, int, bool) (BodyStatus, error) {
	return BodyStatusContinue, nil
}

func (NoopHTTPFilter) ResponseTrailers(EnvoyHTTPFilter) (TrailersStatus, error) {
	return TrailersStatusContinue, nil
}

func (NoopHTTPFilter) OnStreamComplete() {}

// HeadersStatus is the return value of the HTTPFilter.RequestHeaders and HTTPFilter.ResponseHeaders events.
type HeadersStatus int

const (
	// HeadersStatusContinue is returned when the headers should be passed to the next peer.
	HeadersStatusContinue HeadersStatus = 0
	// HeadersStatusStopIteration stops the headers from being forwarded. Body events are still delivered.
	HeadersStatusStopIteration HeadersStatus = 1
	// '2' is reserved for ContinueAndDontEndStream and is not exposed here.

	HeadersStatusStopAllIterationAndBuffer    HeadersStatus = 3
	HeadersStatusStopAllIterationAndWatermark HeadersStatus = 4
)

// String implements fmt.Stringer.
func (s HeadersStatus) String() string {
	switch s {
	case HeadersStatusContinue:
		return "Continue"
	case HeadersStatusStopIteration:
		return "StopIteration"
	case HeadersStatusStopAllIterationAndBuffer:
		return "StopAllIterationAndBuffer"
	case HeadersStatusStopAllIterationAndWatermark:
		return "StopAllIterationAndWatermark"
	default:
		return "HeadersStatus(" + strconv.Itoa(int(s)) + ")"
	}
}

// BodyStatus is the return value of the HTTPFilter.RequestBody and HTTPFilter.ResponseBody events.
type BodyStatus int

const (
	BodyStatusContinue BodyStatus = 0
	// BodyStatusStopIterationAndBuffer stops the body from being forwarded and makes the next chunk
	// accumulate together with the data seen so far.
	BodyStatusStopIterationAndBuffer BodyStatus = 1
)

// String implements fmt.Stringer.
func (s BodyStatus) String() string {
	switch s {
	case BodyStatusContinue:
		return "Continue"
	case BodyStatusStopIterationAndBuffer:
		return "StopIterationAndBuffer"
	default:
		return "BodyStatus(" + strconv.Itoa(int(s)) + ")"
	}
}

// TrailersStatus is the return value of the HTTPFilter.RequestTrailers and HTTPFilter.ResponseTrailers events.
type TrailersStatus int

const (
	TrailersStatusContinue      TrailersStatus = 0
	TrailersStatusStopIteration TrailersStatus = 1
)

// String implements fmt.Stringer.
func (s TrailersStatus) String() string {
	switch s {
	case TrailersStatusContinue:
		return "Continue"
	case TrailersStatusStopIteration:
		return "StopIteration"
	default:
		return "TrailersStatus(" + strconv.Itoa(int(s)) + ")"
	}
}
