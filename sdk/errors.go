// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import "errors"

var (
	// ErrBadArgument is returned by the host when a call carries an offset, size or
	// mutation shape it does not support.
	ErrBadArgument = errors.New("bad argument")
	// ErrNotSimulated is returned by operations the simulated proxy accepts but does not implement.
	ErrNotSimulated = errors.New("operation is not simulated")
	// ErrInvalidConfig is returned when the filter configuration cannot be decoded or validated.
	ErrInvalidConfig = errors.New("invalid filter configuration")
)
