// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package filtertest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/envoyproxy/filtertest/sdk"
)

// LogEntry is a single log record emitted by a filter through [sdk.Env.Logger].
type LogEntry struct {
	Level   slog.Level
	Message string
}

// Option configures the environment shared by all the streams or connections of a listener.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	filterLevel  slog.Level
	startTime    time.Time
	extraReaders []sdkmetric.Reader
}

// WithLogger sets the logger the simulated proxy uses for its own debug output.
// By default the proxy output is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFilterLogLevel sets the minimum level of the filter log records that are captured.
// Defaults to slog.LevelDebug.
func WithFilterLogLevel(level slog.Level) Option {
	return func(o *options) { o.filterLevel = level }
}

// WithStartTime sets the initial time of the fake clock.
func WithStartTime(t time.Time) Option {
	return func(o *options) { o.startTime = t }
}

// WithMetricReader registers an additional reader on the meter provider handed to filters,
// e.g. a Prometheus exporter.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.extraReaders = append(o.extraReaders, r) }
}

// environment holds the fakes of the facilities the proxy hands to filter factories.
type environment struct {
	logger *slog.Logger
	clock  *clocktesting.FakeClock
	reader *sdkmetric.ManualReader
	mp     *sdkmetric.MeterProvider

	mu   sync.Mutex
	logs []LogEntry

	filterLogger *slog.Logger
}

func newEnvironment(opts []Option) *environment {
	o := options{
		logger:      slog.New(slog.DiscardHandler),
		filterLevel: slog.LevelDebug,
		startTime:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&o)
	}
	e := &environment{
		logger: o.logger,
		clock:  clocktesting.NewFakeClock(o.startTime),
		reader: sdkmetric.NewManualReader(),
	}
	mpOpts := []sdkmetric.Option{sdkmetric.WithReader(e.reader)}
	for _, r := range o.extraReaders {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	e.mp = sdkmetric.NewMeterProvider(mpOpts...)
	e.filterLogger = sdk.NewSlogLogger(e.record, o.filterLevel)
	return e
}

func (e *environment) record(level slog.Level, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logs = append(e.logs, LogEntry{Level: level, Message: message})
}

func (e *environment) filterEnv() sdk.Env {
	return sdk.Env{
		Logger: e.filterLogger,
		Clock:  e.clock,
		Meter:  e.mp.Meter("filtertest"),
	}
}

// Clock returns the fake clock handed to the filter. Use Step or SetTime to move time forward.
func (e *environment) Clock() *clocktesting.FakeClock { return e.clock }

// Logs returns the log records the filter emitted so far.
func (e *environment) Logs() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.logs)
}

// Metrics collects the current value of every metric the filter recorded.
func (e *environment) Metrics(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := e.reader.Collect(ctx, &rm); err != nil {
		return rm, fmt.Errorf("failed to collect metrics: %w", err)
	}
	return rm, nil
}

// CounterValue returns the sum of all the data points of the int64 counter with the given name.
// It returns zero when the counter was never recorded.
func (e *environment) CounterValue(name string) int64 {
	rm, err := e.Metrics(context.Background())
	if err != nil {
		return 0
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// Shutdown flushes and stops the meter provider.
func (e *environment) Shutdown(ctx context.Context) error {
	return e.mp.Shutdown(ctx)
}
