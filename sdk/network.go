// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import "strconv"

// NetworkFilterConfigFactory creates a NetworkFilterFactory from the opaque filter configuration
// given to the listener.
type NetworkFilterConfigFactory func(config []byte, env Env) (NetworkFilterFactory, error)

// NetworkFilterFactory creates a NetworkFilter for each new TCP connection.
type NetworkFilterFactory interface {
	// NewFilter is called for each new connection, right before NetworkFilter.NewConnection.
	NewFilter(e EnvoyNetworkFilter) (NetworkFilter, error)
}

// NetworkFilterFactoryFunc adapts a plain function to [NetworkFilterFactory].
type NetworkFilterFactoryFunc func(e EnvoyNetworkFilter) (NetworkFilter, error)

// NewFilter implements [NetworkFilterFactory].
func (f NetworkFilterFactoryFunc) NewFilter(e EnvoyNetworkFilter) (NetworkFilter, error) { return f(e) }

// EnvoyNetworkFilter represents the proxy side of a single TCP connection.
//
// **WARNING**: This must not outlive each event hook.
type EnvoyNetworkFilter interface {
	// DownstreamData reads up to maxSize bytes starting at offset from the data read from the downstream.
	DownstreamData(offset, maxSize int) ([]byte, error)
	// MutateDownstreamData applies the transform to the data read from the downstream.
	MutateDownstreamData(t Transform) error
	// UpstreamData reads up to maxSize bytes starting at offset from the data read from the upstream.
	UpstreamData(offset, maxSize int) ([]byte, error)
	// MutateUpstreamData applies the transform to the data read from the upstream.
	MutateUpstreamData(t Transform) error
}

// NetworkFilter is an interface that represents each TCP connection.
type NetworkFilter interface {
	// NewConnection is called when the downstream connection is accepted.
	NewConnection(e EnvoyNetworkFilter) (NetworkStatus, error)
	// DownstreamData is called when data is read from the downstream.
	// dataSize is the size of all the downstream data not yet forwarded upstream.
	DownstreamData(e EnvoyNetworkFilter, dataSize int, endOfStream bool) (NetworkStatus, error)
	// DownstreamClose is called when the downstream connection is closed.
	DownstreamClose(e EnvoyNetworkFilter, peer PeerType) error
	// UpstreamData is called when data is read from the upstream.
	UpstreamData(e EnvoyNetworkFilter, dataSize int, endOfStream bool) (NetworkStatus, error)
	// UpstreamClose is called when the upstream connection is closed.
	UpstreamClose(e EnvoyNetworkFilter, peer PeerType) error
}

// NoopNetworkFilter is a no-op implementation of the NetworkFilter interface.
type NoopNetworkFilter struct{}

func (NoopNetworkFilter) NewConnection(EnvoyNetworkFilter) (NetworkStatus, error) {
	return NetworkStatusContinue, nil
}

func (NoopNetworkFilter) DownstreamData(EnvoyNetworkFilter, int, bool) (NetworkStatus, error) {
	return NetworkStatusContinue, nil
}

func (NoopNetworkFilter) DownstreamClose(EnvoyNetworkFilter, PeerType) error { return nil }

func (NoopNetworkFilter) UpstreamData(EnvoyNetworkFilter, int, bool) (NetworkStatus, error) {
	return NetworkStatusContinue, nil
}

func (NoopNetworkFilter) UpstreamClose(EnvoyNetworkFilter, PeerType) error { return nil }

// NetworkStatus is the return value of the NetworkFilter data events.
type NetworkStatus int

const (
	NetworkStatusContinue      NetworkStatus = 0
	NetworkStatusStopIteration NetworkStatus = 1
)

// String implements fmt.Stringer.
func (s NetworkStatus) String() string {
	switch s {
	case NetworkStatusContinue:
		return "Continue"
	case NetworkStatusStopIteration:
		return "StopIteration"
	default:
		return "NetworkStatus(" + strconv.Itoa(int(s)) + ")"
	}
}

// PeerType tells which side initiated a connection close.
type PeerType int

const (
	PeerTypeUnknown PeerType = iota
	PeerTypeLocal
	PeerTypeRemote
)

// String implements fmt.Stringer.
func (p PeerType) String() string {
	switch p {
	case PeerTypeUnknown:
		return "unknown"
	case PeerTypeLocal:
		return "local"
	case PeerTypeRemote:
		return "remote"
	default:
		return "PeerType(" + strconv.Itoa(int(p)) + ")"
	}
}
