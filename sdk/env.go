// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"k8s.io/utils/clock"
)

// Env holds the process-wide facilities the proxy hands to a filter factory.
type Env struct {
	// Logger routes the filter logs to the proxy logging system.
	Logger *slog.Logger
	// Clock is the time source of the proxy. Filters must not call time.Now directly.
	Clock clock.PassiveClock
	// Meter creates the filter metrics.
	Meter metric.Meter
}

// WithDefaults returns a copy of env where the unset facilities are replaced by
// a discarding logger, the real clock and a no-op meter.
func (env Env) WithDefaults() Env {
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	if env.Clock == nil {
		env.Clock = clock.RealClock{}
	}
	if env.Meter == nil {
		env.Meter = noop.NewMeterProvider().Meter("")
	}
	return env
}
