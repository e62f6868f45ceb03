// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package buffer implements the body and connection buffer host calls of the simulated proxy,
// including the offset/length convention and bounds checks of the real host.
package buffer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/envoyproxy/filtertest/sdk"
)

// Read returns a copy of buf[offset : offset+min(maxSize, len(buf)-offset)].
// It returns an empty slice when offset is past the end of the buffer.
func Read(buf []byte, offset, maxSize int) ([]byte, error) {
	if offset < 0 || maxSize < 0 {
		return nil, fmt.Errorf("%w: negative offset %d or size %d", sdk.ErrBadArgument, offset, maxSize)
	}
	if offset > math.MaxInt-maxSize {
		return nil, fmt.Errorf("%w: offset %d + size %d overflows", sdk.ErrBadArgument, offset, maxSize)
	}
	if offset >= len(buf) {
		return []byte{}, nil
	}
	end := min(offset+maxSize, len(buf))
	return bytes.Clone(buf[offset:end]), nil
}

// Apply applies the transform to buf and returns the resulting buffer.
func Apply(buf []byte, t sdk.Transform) ([]byte, error) {
	return Mutate(buf, t.Start, t.Length, t.Data)
}

// Mutate removes length bytes at start and inserts data in their place.
//
// Only the shapes supported by the host are accepted:
//   - start == 0, length == 0: prepend.
//   - start == 0, length >= len(buf): replace the whole buffer.
//   - start >= len(buf): append.
//
// Everything else, including a partial replacement of a prefix, fails with [sdk.ErrBadArgument].
func Mutate(buf []byte, start, length int, data []byte) ([]byte, error) {
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("%w: negative start %d or length %d", sdk.ErrBadArgument, start, length)
	}
	switch {
	case start == 0 && length == 0:
		out := make([]byte, 0, len(data)+len(buf))
		return append(append(out, data...), buf...), nil
	case start == 0 && length >= len(buf):
		return bytes.Clone(data), nil
	case start == 0:
		return nil, fmt.Errorf("%w: partial replacement of %d out of %d bytes is not supported",
			sdk.ErrBadArgument, length, len(buf))
	case start >= len(buf):
		return append(buf, data...), nil
	default:
		return nil, fmt.Errorf("%w: in-place mutation at offset %d is not supported", sdk.ErrBadArgument, start)
	}
}
