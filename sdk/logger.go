// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LogFunc receives every rendered log record of a logger created by [NewSlogLogger].
type LogFunc func(level slog.Level, message string)

// NewSlogLogger creates a new slog.Logger that renders each record into a single line
// and routes it to logFunc. Records below minLevel are dropped.
func NewSlogLogger(logFunc LogFunc, minLevel slog.Level) *slog.Logger {
	h := &handler{logFunc: logFunc, minLevel: minLevel}
	return slog.New(h)
}

// handler implements [slog.Handler].
type handler struct {
	mu       sync.Mutex // protects state below (simple approach)
	attrs    []slog.Attr
	groups   []string
	minLevel slog.Level
	logFunc  LogFunc
}

// Enabled implements [slog.Handler].
func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

// Handle implements [slog.Handler].
func (h *handler) Handle(_ context.Context, r slog.Record) error { // nolint:gocritic
	var b strings.Builder
	b.WriteString(r.Message)

	h.mu.Lock()
	attrs := append([]slog.Attr(nil), h.attrs...)
	groups := append([]string(nil), h.groups...)
	h.mu.Unlock()

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	if len(attrs) > 0 {
		b.WriteString(" ")
		renderAttrs(&b, groups, attrs)
	}

	h.logFunc(r.Level, b.String())
	return nil
}

// WithAttrs implements [slog.Handler].
func (h *handler) WithAttrs(as []slog.Attr) slog.Handler {
	h2 := h.clone()
	h2.attrs = append(h2.attrs, as...)
	return h2
}

// WithGroup implements [slog.Handler].
func (h *handler) WithGroup(name string) slog.Handler {
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	return h2
}

func (h *handler) clone() *handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &handler{
		attrs:    append([]slog.Attr(nil), h.attrs...),
		groups:   append([]string(nil), h.groups...),
		minLevel: h.minLevel,
		logFunc:  h.logFunc,
	}
}

func renderAttrs(b *strings.Builder, groups []string, attrs []slog.Attr) {
	prefix := ""
	if len(groups) > 0 {
		prefix = strings.Join(groups, ".") + "."
	}

	for i, a := range attrs {
		if i > 0 {
			b.WriteString(" ")
		}

		fmt.Fprintf(b, "%s%s=%s", prefix, a.Key, a.Value)
	}
}
