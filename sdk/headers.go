// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import (
	"slices"
	"strings"
)

// HeaderMap is a mutable, ordered list of header (or trailer) entries.
// Lookups are case-insensitive. Keys are kept as they were written.
type HeaderMap interface {
	// Get returns the first value of the header. Returns the value and true if the header is found.
	Get(key string) (string, bool)
	// Values returns all the values of the header in order.
	Values(key string) []string
	// Set replaces all the values of the header with the given one.
	Set(key, value string)
	// Add appends a new entry without touching existing ones.
	Add(key, value string)
	// Remove deletes all the entries of the header. Returns true if anything was removed.
	Remove(key string) bool
	// All returns a copy of all entries in order.
	All() [][2]string
	// Len returns the number of entries.
	Len() int
}

var _ HeaderMap = (*Headers)(nil)

// Headers is the [HeaderMap] implementation used by the simulated proxy.
type Headers struct {
	entries [][2]string
}

// NewHeaders creates a Headers holding a copy of the given entries.
func NewHeaders(entries [][2]string) *Headers {
	return &Headers{entries: slices.Clone(entries)}
}

// Get implements [HeaderMap.Get].
func (h *Headers) Get(key string) (string, bool) {
	for _, kv := range h.entries {
		if strings.EqualFold(kv[0], key) {
			return kv[1], true
		}
	}
	return "", false
}

// Values implements [HeaderMap.Values].
func (h *Headers) Values(key string) []string {
	var ret []string
	for _, kv := range h.entries {
		if strings.EqualFold(kv[0], key) {
			ret = append(ret, kv[1])
		}
	}
	return ret
}

// Set implements [HeaderMap.Set].
//
// The first occurrence keeps its position, the other occurrences are dropped.
// The entry is appended when missing.
func (h *Headers) Set(key, value string) {
	found := false
	out := h.entries[:0]
	for _, kv := range h.entries {
		if strings.EqualFold(kv[0], key) {
			if found {
				continue
			}
			found = true
			kv[1] = value
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, [2]string{key, value})
	}
	h.entries = out
}

// Add implements [HeaderMap.Add].
func (h *Headers) Add(key, value string) {
	h.entries = append(h.entries, [2]string{key, value})
}

// Remove implements [HeaderMap.Remove].
func (h *Headers) Remove(key string) bool {
	before := len(h.entries)
	h.entries = slices.DeleteFunc(h.entries, func(kv [2]string) bool {
		return strings.EqualFold(kv[0], key)
	})
	return len(h.entries) != before
}

// All implements [HeaderMap.All].
func (h *Headers) All() [][2]string {
	return slices.Clone(h.entries)
}

// Len implements [HeaderMap.Len].
func (h *Headers) Len() int { return len(h.entries) }
