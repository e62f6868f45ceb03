// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/envoyproxy/filtertest/sdk"
)

// LocalReply is a response the filter sent directly to the downstream.
type LocalReply struct {
	StatusCode uint32
	Headers    [][2]string
	Body       []byte
}

type (
	// HTTPStream simulates a single HTTP exchange going through one http filter.
	//
	// All the Simulate* methods run the whole event to completion before returning: validate,
	// invoke the filter hook, interpret its status and forward what is released to the peers.
	HTTPStream struct {
		id      string
		logger  *slog.Logger
		factory sdk.HTTPFilterFactory
		filter  sdk.HTTPFilter
		// busy is set while an event is being processed. The filter can only reach the stream
		// through the view it was handed, so a nested Simulate* call is a bug in the test.
		busy bool

		request, response direction
		downstream        *HTTPPeer
		upstream          *HTTPPeer

		localReply  *LocalReply
		unsupported []string
		complete    bool
	}

	// direction holds the state of the request or the response side of the exchange.
	direction struct {
		name           string
		started, ended bool
		headers        *sdk.Headers
		trailers       *sdk.Headers
		// data is the body received and not yet released nor buffered.
		data []byte
		// buffered accumulates the body across StopIterationAndBuffer, and the request body
		// released while the headers are still stopped.
		buffered []byte
		// view is the body visible to the filter during the current hook.
		view      *[]byte
		iteration IterationState
		// buffering is true when the last body hook returned StopIterationAndBuffer.
		buffering bool
	}
)

func newDirection(name string) direction {
	return direction{name: name, headers: sdk.NewHeaders(nil), trailers: sdk.NewHeaders(nil)}
}

// body returns the buffer the filter reads and mutates.
func (d *direction) body() *[]byte {
	if d.view != nil {
		return d.view
	}
	return &d.buffered
}

func newHTTPStream(factory sdk.HTTPFilterFactory, logger *slog.Logger) *HTTPStream {
	id := uuid.NewString()
	return &HTTPStream{
		id:         id,
		logger:     logger.With(slog.String("stream_id", id)),
		factory:    factory,
		request:    newDirection("request"),
		response:   newDirection("response"),
		downstream: newHTTPPeer("downstream"),
		upstream:   newHTTPPeer("upstream"),
	}
}

// ID returns the unique identifier of the stream.
func (s *HTTPStream) ID() string { return s.id }

// Downstream returns what the proxy delivered to the client.
func (s *HTTPStream) Downstream() *HTTPPeer { return s.downstream }

// Upstream returns what the proxy delivered to the server.
func (s *HTTPStream) Upstream() *HTTPPeer { return s.upstream }

// LocalReply returns the local reply sent by the filter, if any.
func (s *HTTPStream) LocalReply() (LocalReply, bool) {
	if s.localReply == nil {
		return LocalReply{}, false
	}
	return *s.localReply, true
}

// UnsupportedCalls returns the names of the operations the filter called that are accepted
// but not simulated, in call order.
func (s *HTTPStream) UnsupportedCalls() []string { return slices.Clone(s.unsupported) }

// Complete reports whether the exchange finished and the filter was notified.
func (s *HTTPStream) Complete() bool { return s.complete }

// RequestIterationState returns the iteration state of the request side.
func (s *HTTPStream) RequestIterationState() IterationState { return s.request.iteration }

// ResponseIterationState returns the iteration state of the response side.
func (s *HTTPStream) ResponseIterationState() IterationState { return s.response.iteration }

// SimulateHeadersFromDownstream simulates the request headers arriving from the client.
func (s *HTTPStream) SimulateHeadersFromDownstream(headers [][2]string, endOfStream bool) (sdk.HeadersStatus, error) {
	defer s.enter()()
	s.logger.Debug("simulating request headers", slog.Bool("end_of_stream", endOfStream))
	if s.request.started {
		violation("cannot send request headers twice")
	}
	return s.headers(&s.request, s.upstream, headers, endOfStream,
		func(f sdk.HTTPFilter, e sdk.EnvoyHTTPFilter) (sdk.HeadersStatus, error) {
			return f.RequestHeaders(e, endOfStream)
		})
}

// SimulateDataFromDownstream simulates a chunk of the request body arriving from the client.
func (s *HTTPStream) SimulateDataFromDownstream(data []byte, endOfStream bool) (sdk.BodyStatus, error) {
	defer s.enter()()
	s.logger.Debug("simulating request body",
		slog.Int("size", len(data)), slog.Bool("end_of_stream", endOfStream))
	s.checkRequest("body")
	d := &s.request
	d.checkIteration()

	d.data = append(d.data, data...)
	if endOfStream {
		d.ended = true
	}
	if d.buffering {
		d.buffered = append(d.buffered, d.data...)
		d.data = nil
		d.view = &d.buffered
	} else {
		d.view = &d.data
	}
	defer func() { d.view = nil }()

	status, err := s.bodyHook(d, func(f sdk.HTTPFilter, e sdk.EnvoyHTTPFilter) (sdk.BodyStatus, error) {
		return f.RequestBody(e, len(*d.view), endOfStream)
	})
	if err != nil {
		return status, err
	}
	switch status {
	case sdk.BodyStatusContinue:
		d.buffering = false
		if d.iteration == IterationStateContinue {
			s.release(d.view, s.upstream, endOfStream)
		} else if d.view == &d.data {
			// Headers are still stopped: the released chunk is queued.
			d.buffered = append(d.buffered, d.data...)
			d.data = nil
		}
	case sdk.BodyStatusStopIterationAndBuffer:
		d.buffering = true
		if d.view == &d.data {
			d.buffered = append(d.buffered, d.data...)
			d.data = nil
		}
	default:
		defect("unknown body status %d returned from request body", status)
	}
	s.maybeComplete()
	return status, nil
}

// SimulateTrailersFromDownstream simulates the request trailers arriving from the client.
// Trailers always end the request.
func (s *HTTPStream) SimulateTrailersFromDownstream(trailers [][2]string) (sdk.TrailersStatus, error) {
	defer s.enter()()
	s.logger.Debug("simulating request trailers")
	s.checkRequest("trailers")
	return s.trailers(&s.request, s.upstream, trailers,
		func(f sdk.HTTPFilter, e sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error) {
			return f.RequestTrailers(e)
		})
}

// SimulateHeadersFromUpstream simulates the response headers arriving from the server.
func (s *HTTPStream) SimulateHeadersFromUpstream(headers [][2]string, endOfStream bool) (sdk.HeadersStatus, error) {
	defer s.enter()()
	s.logger.Debug("simulating response headers", slog.Bool("end_of_stream", endOfStream))
	s.checkUpstreamReached("headers")
	if s.response.ended {
		violation("cannot send response headers after end of stream")
	}
	if s.response.started {
		violation("cannot send response headers twice")
	}
	return s.headers(&s.response, s.downstream, headers, endOfStream,
		func(f sdk.HTTPFilter, e sdk.EnvoyHTTPFilter) (sdk.HeadersStatus, error) {
			return f.ResponseHeaders(e, endOfStream)
		})
}

// SimulateDataFromUpstream simulates a chunk of the response body arriving from the server.
//
// Unlike the request side, every response chunk is appended to the buffered response body before
// the hook runs, and Continue releases everything buffered so far.
func (s *HTTPStream) SimulateDataFromUpstream(data []byte, endOfStream bool) (sdk.BodyStatus, error) {
	defer s.enter()()
	s.logger.Debug("simulating response body",
		slog.Int("size", len(data)), slog.Bool("end_of_stream", endOfStream))
	s.checkResponse("body")
	d := &s.response
	d.checkIteration()

	d.buffered = append(d.buffered, data...)
	if endOfStream {
		d.ended = true
	}
	d.view = &d.buffered
	defer func() { d.view = nil }()

	status, err := s.bodyHook(d, func(f sdk.HTTPFilter, e sdk.EnvoyHTTPFilter) (sdk.BodyStatus, error) {
		return f.ResponseBody(e, len(d.buffered), endOfStream)
	})
	if err != nil {
		return status, err
	}
	switch status {
	case sdk.BodyStatusContinue:
		d.buffering = false
		if d.iteration == IterationStateContinue {
			s.release(&d.buffered, s.downstream, endOfStream)
		}
	case sdk.BodyStatusStopIterationAndBuffer:
		d.buffering = true
	default:
		defect("unknown body status %d returned from response body", status)
	}
	s.maybeComplete()
	return status, nil
}

// SimulateTrailersFromUpstream simulates the response trailers arriving from the server.
func (s *HTTPStream) SimulateTrailersFromUpstream(trailers [][2]string) (sdk.TrailersStatus, error) {
	defer s.enter()()
	s.logger.Debug("simulating response trailers")
	s.checkResponse("trailers")
	return s.trailers(&s.response, s.downstream, trailers,
		func(f sdk.HTTPFilter, e sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error) {
			return f.ResponseTrailers(e)
		})
}

func (s *HTTPStream) headers(d *direction, peer *HTTPPeer, headers [][2]string, endOfStream bool,
	hook func(sdk.HTTPFilter, sdk.EnvoyHTTPFilter) (sdk.HeadersStatus, error),
) (sdk.HeadersStatus, error) {
	d.started = true
	d.headers = sdk.NewHeaders(headers)
	if endOfStream {
		d.ended = true
	}

	var status sdk.HeadersStatus
	var err error
	s.withView(func(v *httpView) {
		if err = s.ensureFilter(v); err != nil {
			return
		}
		status, err = hook(s.filter, v)
	})
	if err != nil {
		// Nothing was forwarded: later body and trailers are held like after StopIteration.
		d.iteration = IterationStateStopSingleIteration
		return status, fmt.Errorf("%s headers: %w", d.name, err)
	}

	switch status {
	case sdk.HeadersStatusContinue:
		d.iteration = IterationStateContinue
		if s.localReply == nil {
			peer.receiveHeaders(d.headers.All(), endOfStream)
		}
	case sdk.HeadersStatusStopIteration:
		d.iteration = IterationStateStopSingleIteration
	case sdk.HeadersStatusStopAllIterationAndBuffer:
		d.iteration = IterationStateStopAllBuffer
	case sdk.HeadersStatusStopAllIterationAndWatermark:
		d.iteration = IterationStateStopAllWatermark
	default:
		defect("unknown headers status %d returned from %s headers", status, d.name)
	}
	s.logger.Debug("headers processed", slog.String("direction", d.name), slog.String("status", status.String()))
	s.maybeComplete()
	return status, nil
}

func (s *HTTPStream) bodyHook(d *direction,
	hook func(sdk.HTTPFilter, sdk.EnvoyHTTPFilter) (sdk.BodyStatus, error),
) (status sdk.BodyStatus, err error) {
	s.withView(func(v *httpView) {
		if err = s.ensureFilter(v); err != nil {
			return
		}
		status, err = hook(s.filter, v)
	})
	if err != nil {
		return status, fmt.Errorf("%s body: %w", d.name, err)
	}
	s.logger.Debug("body processed", slog.String("direction", d.name), slog.String("status", status.String()))
	return status, nil
}

func (s *HTTPStream) trailers(d *direction, peer *HTTPPeer, trailers [][2]string,
	hook func(sdk.HTTPFilter, sdk.EnvoyHTTPFilter) (sdk.TrailersStatus, error),
) (sdk.TrailersStatus, error) {
	d.checkIteration()
	d.trailers = sdk.NewHeaders(trailers)
	d.ended = true
	// The trailers hook sees the whole body that was held back so far.
	d.buffered = append(d.buffered, d.data...)
	d.data = nil
	d.view = &d.buffered
	defer func() { d.view = nil }()

	var status sdk.TrailersStatus
	var err error
	s.withView(func(v *httpView) {
		if err = s.ensureFilter(v); err != nil {
			return
		}
		status, err = hook(s.filter, v)
	})
	if err != nil {
		return status, fmt.Errorf("%s trailers: %w", d.name, err)
	}

	switch status {
	case sdk.TrailersStatusContinue:
		// Trailers stay held while the headers are stopped.
		if d.iteration == IterationStateContinue && s.localReply == nil {
			if len(d.buffered) > 0 {
				s.release(&d.buffered, peer, false)
			}
			peer.receiveTrailers(d.trailers.All())
		}
	case sdk.TrailersStatusStopIteration:
	default:
		defect("unknown trailers status %d returned from %s trailers", status, d.name)
	}
	s.logger.Debug("trailers processed", slog.String("direction", d.name), slog.String("status", status.String()))
	s.maybeComplete()
	return status, nil
}

// release drains buf and delivers it to the peer. Nothing is delivered once a local reply was sent.
func (s *HTTPStream) release(buf *[]byte, peer *HTTPPeer, endOfStream bool) {
	out := *buf
	*buf = nil
	if s.localReply != nil {
		return
	}
	if len(out) > 0 || endOfStream {
		peer.receiveData(out, endOfStream)
	}
}

func (s *HTTPStream) sendResponse(statusCode uint32, headers [][2]string, body []byte) {
	if s.downstream.ReceivedHeaders() {
		violation("cannot send a local reply after the response headers were sent downstream")
	}
	h := sdk.NewHeaders(headers)
	h.Add(":status", strconv.FormatUint(uint64(statusCode), 10))

	s.response.started = true
	s.response.headers = h
	s.response.trailers = sdk.NewHeaders(nil)
	s.response.data = nil
	s.response.buffered = nil

	s.downstream.receiveHeaders(h.All(), body == nil)
	if body != nil {
		s.downstream.receiveData(body, true)
	}
	s.response.ended = true
	s.localReply = &LocalReply{StatusCode: statusCode, Headers: h.All(), Body: slices.Clone(body)}
	s.logger.Debug("local reply sent", slog.Int("status_code", int(statusCode)))
}

func (s *HTTPStream) unsupportedCall(name string) error {
	s.unsupported = append(s.unsupported, name)
	s.logger.Warn("filter called an operation that is not simulated", slog.String("operation", name))
	return fmt.Errorf("%w: %s", sdk.ErrNotSimulated, name)
}

func (s *HTTPStream) ensureFilter(v *httpView) error {
	if s.filter != nil {
		return nil
	}
	f, err := s.factory.NewFilter(v)
	if err != nil {
		return fmt.Errorf("failed to create http filter: %w", err)
	}
	if f == nil {
		return fmt.Errorf("http filter factory returned no filter")
	}
	s.filter = f
	return nil
}

func (s *HTTPStream) maybeComplete() {
	if s.complete || s.filter == nil || !s.response.ended {
		return
	}
	if s.request.ended || s.localReply != nil {
		s.complete = true
		s.logger.Debug("stream complete")
		s.filter.OnStreamComplete()
	}
}

func (s *HTTPStream) enter() (exit func()) {
	if s.busy {
		defect("re-entrant call into the HTTP stream from a filter callback")
	}
	s.busy = true
	return func() { s.busy = false }
}

func (s *HTTPStream) withView(fn func(v *httpView)) {
	v := &httpView{s: s, live: true}
	defer func() { v.live = false }()
	fn(v)
}

func (s *HTTPStream) checkRequest(what string) {
	if !s.request.started {
		violation("cannot send request %s before request headers", what)
	}
	if s.request.ended {
		violation("cannot send request %s after end of stream", what)
	}
	if s.localReply != nil {
		violation("cannot send request %s after a local reply was sent", what)
	}
}

func (s *HTTPStream) checkUpstreamReached(what string) {
	if !s.upstream.ReceivedHeaders() {
		violation("cannot send response %s before the request headers reached the upstream", what)
	}
}

func (s *HTTPStream) checkResponse(what string) {
	s.checkUpstreamReached(what)
	if !s.response.started {
		violation("cannot send response %s before response headers", what)
	}
	if s.response.ended {
		violation("cannot send response %s after end of stream", what)
	}
}

func (d *direction) checkIteration() {
	if d.iteration.reserved() {
		defect("%s iteration state %s is not implemented", d.name, d.iteration)
	}
}
