// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import "fmt"

// ProtocolViolation is the panic value raised when test code drives the simulated proxy in a way the
// real proxy never would, e.g. sending a body before the headers or closing a connection twice.
//
// A correct test never triggers it, so it is raised as a panic rather than returned.
type ProtocolViolation struct {
	Msg string
}

// Error implements error.
func (p *ProtocolViolation) Error() string { return p.Msg }

// HarnessDefect is the panic value raised when the simulation itself cannot faithfully continue:
// an unknown status value crossed the filter boundary, a reserved behavior was reached, or the
// simulated state was accessed re-entrantly or after a callback returned.
type HarnessDefect struct {
	Msg string
}

// Error implements error.
func (h *HarnessDefect) Error() string { return "filtertest: " + h.Msg }

func violation(format string, args ...any) {
	panic(&ProtocolViolation{Msg: fmt.Sprintf(format, args...)})
}

func defect(format string, args ...any) {
	panic(&HarnessDefect{Msg: fmt.Sprintf(format, args...)})
}
