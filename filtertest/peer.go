// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import (
	"bytes"
	"slices"
)

// HTTPPeer records what the simulated proxy delivered to one side of an HTTP exchange:
// the downstream (client) or the upstream (server).
type HTTPPeer struct {
	name     string
	headers  [][2]string
	trailers [][2]string
	body     []byte
	drained  int
	gotHdrs  bool
	gotTrls  bool
	end      bool
}

func newHTTPPeer(name string) *HTTPPeer { return &HTTPPeer{name: name} }

// ReceivedHeaders reports whether the headers were delivered to this peer.
func (p *HTTPPeer) ReceivedHeaders() bool { return p.gotHdrs }

// Headers returns the delivered headers, nil if none were delivered.
func (p *HTTPPeer) Headers() [][2]string { return slices.Clone(p.headers) }

// Body returns the whole body delivered so far, drained or not.
func (p *HTTPPeer) Body() []byte { return bytes.Clone(p.body) }

// DrainBody returns the body delivered since the previous call to DrainBody.
func (p *HTTPPeer) DrainBody() []byte {
	out := bytes.Clone(p.body[p.drained:])
	p.drained = len(p.body)
	return out
}

// ReceivedTrailers reports whether the trailers were delivered to this peer.
func (p *HTTPPeer) ReceivedTrailers() bool { return p.gotTrls }

// Trailers returns the delivered trailers, nil if none were delivered.
func (p *HTTPPeer) Trailers() [][2]string { return slices.Clone(p.trailers) }

// ReceivedEndOfStream reports whether the end of stream was delivered to this peer.
func (p *HTTPPeer) ReceivedEndOfStream() bool { return p.end }

func (p *HTTPPeer) receiveHeaders(headers [][2]string, endOfStream bool) {
	if p.gotHdrs {
		violation("%s cannot receive headers twice", p.name)
	}
	if p.end {
		violation("%s cannot receive headers after end of stream", p.name)
	}
	p.gotHdrs = true
	p.headers = slices.Clone(headers)
	p.end = endOfStream
}

func (p *HTTPPeer) receiveData(data []byte, endOfStream bool) {
	if !p.gotHdrs {
		violation("%s cannot receive body before headers", p.name)
	}
	if p.end {
		violation("%s cannot receive body after end of stream", p.name)
	}
	p.body = append(p.body, data...)
	p.end = endOfStream
}

func (p *HTTPPeer) receiveTrailers(trailers [][2]string) {
	if !p.gotHdrs {
		violation("%s cannot receive trailers before headers", p.name)
	}
	if p.end {
		violation("%s cannot receive trailers after end of stream", p.name)
	}
	p.gotTrls = true
	p.trailers = slices.Clone(trailers)
	p.end = true
}

// TCPPeer records what the simulated proxy delivered to one side of a TCP connection.
type TCPPeer struct {
	name string
	// needsConnect is true for the upstream side, which has to be connected
	// before it can receive anything.
	needsConnect bool
	connected    bool
	data         []byte
	drained      int
	closed       bool
}

func newTCPPeer(name string, needsConnect bool) *TCPPeer {
	return &TCPPeer{name: name, needsConnect: needsConnect}
}

// ReceivedConnect reports whether the connection to this peer was established.
// The downstream is always connected.
func (p *TCPPeer) ReceivedConnect() bool { return !p.needsConnect || p.connected }

// Bytes returns all the bytes delivered so far, drained or not.
func (p *TCPPeer) Bytes() []byte { return bytes.Clone(p.data) }

// DrainBytes returns the bytes delivered since the previous call to DrainBytes.
func (p *TCPPeer) DrainBytes() []byte {
	out := bytes.Clone(p.data[p.drained:])
	p.drained = len(p.data)
	return out
}

// ReceivedClose reports whether the end of stream was delivered to this peer.
func (p *TCPPeer) ReceivedClose() bool { return p.closed }

func (p *TCPPeer) receiveConnect() {
	if p.connected {
		violation("%s cannot be connected twice", p.name)
	}
	p.connected = true
}

func (p *TCPPeer) receiveData(data []byte, endOfStream bool) {
	if !p.ReceivedConnect() {
		violation("%s cannot receive data before connect", p.name)
	}
	if p.closed {
		violation("%s cannot receive data after close", p.name)
	}
	p.data = append(p.data, data...)
	p.closed = endOfStream
}
