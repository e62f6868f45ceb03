// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sdk

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestHeaders_Get(t *testing.T) {
	h := NewHeaders([][2]string{{"Content-Type", "application/json"}, {"x-foo", "a"}, {"X-Foo", "b"}})

	v, ok := h.Get("content-type")
	require.True(t, ok)
	require.Equal(t, "application/json", v)

	v, ok = h.Get("X-FOO")
	require.True(t, ok)
	require.Equal(t, "a", v)
	require.Equal(t, []string{"a", "b"}, h.Values("x-foo"))

	_, ok = h.Get("missing")
	require.False(t, ok)
	require.Nil(t, h.Values("missing"))
}

func TestHeaders_Set(t *testing.T) {
	for _, tc := range []struct {
		name     string
		in       [][2]string
		key, val string
		exp      [][2]string
	}{
		{
			name: "missing is appended",
			in:   [][2]string{{"a", "1"}},
			key:  "b", val: "2",
			exp: [][2]string{{"a", "1"}, {"b", "2"}},
		},
		{
			name: "first occurrence keeps its position",
			in:   [][2]string{{"x", "1"}, {"a", "1"}, {"X", "2"}},
			key:  "x", val: "3",
			exp: [][2]string{{"x", "3"}, {"a", "1"}},
		},
		{
			name: "empty",
			key:  "a", val: "1",
			exp: [][2]string{{"a", "1"}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHeaders(tc.in)
			h.Set(tc.key, tc.val)
			if d := cmp.Diff(tc.exp, h.All()); d != "" {
				t.Errorf("unexpected headers (-want +got):\n%s", d)
			}
		})
	}
}

func TestHeaders_AddRemove(t *testing.T) {
	h := NewHeaders(nil)
	h.Add("a", "1")
	h.Add("b", "2")
	h.Add("A", "3")
	require.Equal(t, 3, h.Len())

	require.True(t, h.Remove("a"))
	require.False(t, h.Remove("a"))
	require.Equal(t, [][2]string{{"b", "2"}}, h.All())
}

func TestNewHeaders_Copies(t *testing.T) {
	in := [][2]string{{"a", "1"}}
	h := NewHeaders(in)
	in[0][1] = "changed"
	v, _ := h.Get("a")
	require.Equal(t, "1", v)

	out := h.All()
	out[0][1] = "changed"
	v, _ = h.Get("a")
	require.Equal(t, "1", v)
}
