// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package osrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaders_GetIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	h := NewHeaders()
	h.Set("Content-Type", "application/json")
	assert.Equal(t, "application/json", h.Get("content-type"))
	assert.Equal(t, "application/json", h.Get("CONTENT-TYPE"))
}

func TestHeaders_Set_replacesAllExistingValues(t *testing.T) {
	t.Parallel()

	h := NewHeaders()
	h.Add("x-foo", "one")
	h.Add("x-foo", "two")
	h.Set("x-foo", "three")

	assert.Equal(t, []string{"three"}, h.Values("x-foo"))
	assert.Equal(t, 1, h.Len())
}

func TestHeaders_Add_preservesMultiplicityAndOrder(t *testing.T) {
	t.Parallel()

	h := NewHeaders()
	h.Add("set-cookie", "a=1")
	h.Add("set-cookie", "b=2")

	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("set-cookie"))
}

func TestHeaders_Del_removesAllValues(t *testing.T) {
	t.Parallel()

	h := NewHeaders()
	h.Add("x-foo", "one")
	h.Add("x-foo", "two")
	h.Del("x-foo")

	assert.False(t, h.Has("x-foo"))
	assert.Equal(t, 0, h.Len())
}

func TestHeaders_Range_visitsInInsertionOrder(t *testing.T) {
	t.Parallel()

	h := NewHeaders()
	h.Add("a", "1")
	h.Add("b", "2")
	h.Add("a", "3")

	var seen [][2]string
	h.Range(func(name, value string) { seen = append(seen, [2]string{name, value}) })
	assert.Equal(t, [][2]string{{"a", "1"}, {"b", "2"}, {"a", "3"}}, seen)
}

func TestHeaders_Clone_isIndependentCopy(t *testing.T) {
	t.Parallel()

	h := NewHeaders()
	h.Set("x-foo", "bar")

	clone := h.Clone()
	clone.Set("x-foo", "changed")

	assert.Equal(t, "bar", h.Get("x-foo"))
	assert.Equal(t, "changed", clone.Get("x-foo"))
}

func TestHeaders_nilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var h *Headers
	assert.Equal(t, "", h.Get("x"))
	assert.Nil(t, h.Values("x"))
	assert.False(t, h.Has("x"))
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Pairs())
	assert.NotPanics(t, func() { h.Range(func(string, string) {}) })
}

func TestHeadersFromPairs_roundTrips(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{{"a", "1"}, {"b", "2"}}
	h := HeadersFromPairs(pairs)
	assert.Equal(t, pairs, h.Pairs())
}
