// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import "math"

// EndOfBuffer is the sentinel offset and length meaning "up to the end of the buffer".
const EndOfBuffer = math.MaxInt

// Transform is a buffer mutation expressed with the host ABI convention:
// remove Length bytes at Start and insert Data in their place.
//
// Only three shapes are accepted by the host: a pure insert at the beginning,
// a pure insert at the end, and a replacement of the whole buffer.
type Transform struct {
	Start, Length int
	Data          []byte
}

// Prepend inserts data at the beginning of the buffer.
func Prepend(data []byte) Transform { return Transform{Start: 0, Length: 0, Data: data} }

// Append inserts data at the end of the buffer.
func Append(data []byte) Transform {
	return Transform{Start: EndOfBuffer, Length: EndOfBuffer, Data: data}
}

// Replace substitutes the entire buffer contents with data.
func Replace(data []byte) Transform { return Transform{Start: 0, Length: EndOfBuffer, Data: data} }
