// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package filtertest simulates the Envoy extension pipeline so that filters built on the sdk package
// can be unit tested without running a proxy.
//
// An HTTP filter is exercised through a listener that mints one [HTTPStream] per exchange:
//
//	l, err := filtertest.NewListener().HTTP().Filter(myfilter.New).Configure(cfg)
//	s := l.NewHTTPStream()
//	status, err := s.SimulateHeadersFromDownstream([][2]string{{":path", "/"}}, false)
//	s.Upstream().Headers()
//
// A network filter is exercised the same way through [Connection].
package filtertest

import (
	"errors"
	"fmt"

	"github.com/envoyproxy/filtertest/sdk"
)

var errNoFilter = errors.New("no filter factory configured")

// ListenerBuilder is the entry point of the simulation.
type ListenerBuilder struct {
	opts []Option
}

// NewListener starts building a simulated listener.
func NewListener(opts ...Option) *ListenerBuilder {
	return &ListenerBuilder{opts: opts}
}

// HTTP selects an HTTP listener.
func (b *ListenerBuilder) HTTP() *HTTPListenerBuilder {
	return &HTTPListenerBuilder{opts: b.opts}
}

// TCP selects a TCP listener.
func (b *ListenerBuilder) TCP() *TCPListenerBuilder {
	return &TCPListenerBuilder{opts: b.opts}
}

// HTTPListenerBuilder configures an HTTP listener with a single http filter.
type HTTPListenerBuilder struct {
	opts    []Option
	factory sdk.HTTPFilterConfigFactory
}

// Filter sets the http filter of the listener.
func (b *HTTPListenerBuilder) Filter(f sdk.HTTPFilterConfigFactory) *HTTPListenerBuilder {
	b.factory = f
	return b
}

// Configure runs the filter config factory with the given configuration.
func (b *HTTPListenerBuilder) Configure(config []byte) (*HTTPListener, error) {
	if b.factory == nil {
		return nil, errNoFilter
	}
	env := newEnvironment(b.opts)
	f, err := b.factory(config, env.filterEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to configure http filter: %w", err)
	}
	if f == nil {
		return nil, errors.New("http filter config factory returned no factory")
	}
	return &HTTPListener{environment: env, factory: f}, nil
}

// HTTPListener mints independent HTTP streams sharing one configured filter factory.
type HTTPListener struct {
	*environment
	factory sdk.HTTPFilterFactory
}

// NewHTTPStream starts a new simulated HTTP exchange.
func (l *HTTPListener) NewHTTPStream() *HTTPStream {
	return newHTTPStream(l.factory, l.logger)
}

// TCPListenerBuilder configures a TCP listener with a single network filter.
type TCPListenerBuilder struct {
	opts    []Option
	factory sdk.NetworkFilterConfigFactory
}

// NetworkFilter sets the network filter of the listener.
func (b *TCPListenerBuilder) NetworkFilter(f sdk.NetworkFilterConfigFactory) *TCPListenerBuilder {
	b.factory = f
	return b
}

// Configure runs the network filter config factory with the given configuration.
func (b *TCPListenerBuilder) Configure(config []byte) (*TCPListener, error) {
	if b.factory == nil {
		return nil, errNoFilter
	}
	env := newEnvironment(b.opts)
	f, err := b.factory(config, env.filterEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to configure network filter: %w", err)
	}
	if f == nil {
		return nil, errors.New("network filter config factory returned no factory")
	}
	return &TCPListener{environment: env, factory: f}, nil
}

// TCPListener mints independent TCP connections sharing one configured filter factory.
type TCPListener struct {
	*environment
	factory sdk.NetworkFilterFactory
}

// NewConnection starts a new simulated TCP connection.
func (l *TCPListener) NewConnection() *Connection {
	return newConnection(l.factory, l.logger)
}
