// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/envoyproxy/filtertest/internal/buffer"
	"github.com/envoyproxy/filtertest/sdk"
)

// Connection simulates a single TCP connection going through one network filter.
//
// The two read buffers behave differently, as they do in the proxy: the downstream buffer keeps the
// bytes the filter did not let through and appends the next chunk to them, while the upstream buffer
// only ever holds the current chunk and is cleared after every event.
type Connection struct {
	id      string
	logger  *slog.Logger
	factory sdk.NetworkFilterFactory
	filter  sdk.NetworkFilter
	busy    bool

	receivedConnect bool

	downstreamBuf    []byte
	downstreamEOS    bool
	downstreamClosed bool

	upstreamBuf    []byte
	upstreamEOS    bool
	upstreamClosed bool

	downstream *TCPPeer
	upstream   *TCPPeer
}

func newConnection(factory sdk.NetworkFilterFactory, logger *slog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:         id,
		logger:     logger.With(slog.String("connection_id", id)),
		factory:    factory,
		downstream: newTCPPeer("downstream", false),
		upstream:   newTCPPeer("upstream", true),
	}
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() string { return c.id }

// Downstream returns what the proxy delivered to the client.
func (c *Connection) Downstream() *TCPPeer { return c.downstream }

// Upstream returns what the proxy delivered to the server.
func (c *Connection) Upstream() *TCPPeer { return c.upstream }

// SimulateConnect simulates a new downstream connection accepted by the listener.
// On Continue the proxy connects to the upstream.
func (c *Connection) SimulateConnect() (sdk.NetworkStatus, error) {
	defer c.enter()()
	return c.connect()
}

// SimulateDataFromDownstream simulates bytes read from the client. The connection is
// established first if SimulateConnect was never called.
func (c *Connection) SimulateDataFromDownstream(data []byte, endOfStream bool) (sdk.NetworkStatus, error) {
	defer c.enter()()
	if !c.receivedConnect {
		if status, err := c.connect(); err != nil {
			return status, err
		}
	}
	return c.downstreamData(data, endOfStream)
}

// SimulateCloseFromDownstream simulates the client closing the connection. Unless the client already
// sent its end of stream, an empty final read is delivered to the filter before the close event.
func (c *Connection) SimulateCloseFromDownstream() error {
	defer c.enter()()
	if c.downstreamClosed {
		violation("cannot close downstream connection twice")
	}
	if !c.receivedConnect {
		if _, err := c.connect(); err != nil {
			return err
		}
	}
	if !c.downstreamEOS {
		if _, err := c.downstreamData(nil, true); err != nil {
			return err
		}
	}
	c.downstreamClosed = true
	c.logger.Debug("downstream closed")

	var err error
	c.withView(func(v *networkView) { err = c.filter.DownstreamClose(v, sdk.PeerTypeRemote) })
	if err != nil {
		return fmt.Errorf("downstream close: %w", err)
	}
	return nil
}

// SimulateDataFromUpstream simulates bytes read from the server.
func (c *Connection) SimulateDataFromUpstream(data []byte, endOfStream bool) (sdk.NetworkStatus, error) {
	defer c.enter()()
	return c.upstreamData(data, endOfStream)
}

// SimulateCloseFromUpstream simulates the server closing the connection. Unless the server already
// sent its end of stream, an empty final read is delivered to the filter before the close event.
//
// The upstream is never connected implicitly: closing it before a successful connect is a violation.
func (c *Connection) SimulateCloseFromUpstream() error {
	defer c.enter()()
	if c.upstreamClosed {
		violation("cannot close upstream connection twice")
	}
	if !c.upstream.ReceivedConnect() {
		violation("cannot close upstream connection before it is connected")
	}
	if !c.upstreamEOS {
		if _, err := c.upstreamData(nil, true); err != nil {
			return err
		}
	}
	c.upstreamClosed = true
	c.logger.Debug("upstream closed")

	var err error
	c.withView(func(v *networkView) { err = c.filter.UpstreamClose(v, sdk.PeerTypeRemote) })
	if err != nil {
		return fmt.Errorf("upstream close: %w", err)
	}
	return nil
}

func (c *Connection) connect() (sdk.NetworkStatus, error) {
	if c.receivedConnect {
		violation("cannot connect twice")
	}
	c.logger.Debug("simulating new connection")

	var status sdk.NetworkStatus
	var err error
	c.withView(func(v *networkView) {
		if c.filter == nil {
			var f sdk.NetworkFilter
			if f, err = c.factory.NewFilter(v); err != nil {
				err = fmt.Errorf("failed to create network filter: %w", err)
				return
			}
			if f == nil {
				err = fmt.Errorf("network filter factory returned no filter")
				return
			}
			c.filter = f
		}
		c.receivedConnect = true
		status, err = c.filter.NewConnection(v)
	})
	if err != nil {
		return status, fmt.Errorf("new connection: %w", err)
	}
	switch status {
	case sdk.NetworkStatusContinue:
		c.upstream.receiveConnect()
	case sdk.NetworkStatusStopIteration:
	default:
		defect("unknown network status %d returned from new connection", status)
	}
	return status, nil
}

func (c *Connection) downstreamData(data []byte, endOfStream bool) (sdk.NetworkStatus, error) {
	if c.downstreamEOS {
		violation("cannot send downstream data after end of stream")
	}
	c.logger.Debug("simulating downstream data",
		slog.Int("size", len(data)), slog.Bool("end_of_stream", endOfStream))
	c.downstreamBuf = append(c.downstreamBuf, data...)
	if endOfStream {
		c.downstreamEOS = true
	}

	var status sdk.NetworkStatus
	var err error
	c.withView(func(v *networkView) {
		status, err = c.filter.DownstreamData(v, len(c.downstreamBuf), endOfStream)
	})
	if err != nil {
		return status, fmt.Errorf("downstream data: %w", err)
	}
	switch status {
	case sdk.NetworkStatusContinue:
		// Without an upstream the bytes stay in the read buffer. Connect is never retried after
		// NewConnection stopped, so they are held for the rest of the connection.
		if c.upstream.ReceivedConnect() {
			out := c.downstreamBuf
			c.downstreamBuf = nil
			c.upstream.receiveData(out, endOfStream)
		}
	case sdk.NetworkStatusStopIteration:
	default:
		defect("unknown network status %d returned from downstream data", status)
	}
	return status, nil
}

func (c *Connection) upstreamData(data []byte, endOfStream bool) (sdk.NetworkStatus, error) {
	if !c.upstream.ReceivedConnect() {
		violation("cannot send upstream data before the upstream is connected")
	}
	if c.upstreamEOS {
		violation("cannot send upstream data after end of stream")
	}
	c.logger.Debug("simulating upstream data",
		slog.Int("size", len(data)), slog.Bool("end_of_stream", endOfStream))
	c.upstreamBuf = append([]byte(nil), data...)
	if endOfStream {
		c.upstreamEOS = true
	}
	defer func() { c.upstreamBuf = nil }()

	var status sdk.NetworkStatus
	var err error
	c.withView(func(v *networkView) {
		status, err = c.filter.UpstreamData(v, len(c.upstreamBuf), endOfStream)
	})
	if err != nil {
		return status, fmt.Errorf("upstream data: %w", err)
	}
	switch status {
	case sdk.NetworkStatusContinue:
		c.downstream.receiveData(c.upstreamBuf, endOfStream)
	case sdk.NetworkStatusStopIteration:
		c.logger.Debug("upstream chunk dropped", slog.Int("size", len(c.upstreamBuf)))
	default:
		defect("unknown network status %d returned from upstream data", status)
	}
	return status, nil
}

func (c *Connection) enter() (exit func()) {
	if c.busy {
		defect("re-entrant call into the TCP connection from a filter callback")
	}
	c.busy = true
	return func() { c.busy = false }
}

func (c *Connection) withView(fn func(v *networkView)) {
	v := &networkView{c: c, live: true}
	defer func() { v.live = false }()
	fn(v)
}

// networkView is the sdk.EnvoyNetworkFilter handed to the filter for the duration of a single hook.
type networkView struct {
	c    *Connection
	live bool
}

var _ sdk.EnvoyNetworkFilter = (*networkView)(nil)

func (v *networkView) conn() *Connection {
	if !v.live {
		defect("EnvoyNetworkFilter used after the filter callback returned")
	}
	return v.c
}

// DownstreamData implements [sdk.EnvoyNetworkFilter].
func (v *networkView) DownstreamData(offset, maxSize int) ([]byte, error) {
	return buffer.Read(v.conn().downstreamBuf, offset, maxSize)
}

// MutateDownstreamData implements [sdk.EnvoyNetworkFilter].
func (v *networkView) MutateDownstreamData(t sdk.Transform) error {
	return mutate(&v.conn().downstreamBuf, t)
}

// UpstreamData implements [sdk.EnvoyNetworkFilter].
func (v *networkView) UpstreamData(offset, maxSize int) ([]byte, error) {
	return buffer.Read(v.conn().upstreamBuf, offset, maxSize)
}

// MutateUpstreamData implements [sdk.EnvoyNetworkFilter].
func (v *networkView) MutateUpstreamData(t sdk.Transform) error {
	return mutate(&v.conn().upstreamBuf, t)
}
