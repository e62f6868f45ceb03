// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import "strconv"

// IterationState remembers the effect of the last headers status of a direction on the
// processing of the following body and trailers.
type IterationState int

const (
	// IterationStateContinue means the headers were forwarded.
	IterationStateContinue IterationState = iota
	// IterationStateStopSingleIteration means the headers were held; body chunks the filter
	// lets through are queued instead of forwarded.
	IterationStateStopSingleIteration
	// IterationStateStopAllBuffer and IterationStateStopAllWatermark are reached through
	// StopAllIteration* header statuses. Their semantics are not simulated and any
	// further event on the direction fails with a [HarnessDefect].
	IterationStateStopAllBuffer
	IterationStateStopAllWatermark
)

// String implements fmt.Stringer.
func (s IterationState) String() string {
	switch s {
	case IterationStateContinue:
		return "Continue"
	case IterationStateStopSingleIteration:
		return "StopSingleIteration"
	case IterationStateStopAllBuffer:
		return "StopAllBuffer"
	case IterationStateStopAllWatermark:
		return "StopAllWatermark"
	default:
		return "IterationState(" + strconv.Itoa(int(s)) + ")"
	}
}

// reserved reports whether the state has no simulated semantics.
func (s IterationState) reserved() bool {
	return s == IterationStateStopAllBuffer || s == IterationStateStopAllWatermark
}
