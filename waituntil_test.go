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

package osrv

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundTaskRegistry_drain_returnsImmediatelyWhenEmpty(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	assert.True(t, reg.drain(time.Millisecond))
}

func TestBackgroundTaskRegistry_add_tracksAndClearsPending(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	release := make(chan struct{})
	reg.add(func() error {
		<-release
		return nil
	}, nil)

	require.Eventually(t, func() bool { return reg.count() == 1 }, time.Second, time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return reg.count() == 0 }, time.Second, time.Millisecond)
}

func TestBackgroundTaskRegistry_drain_waitsForCompletion(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	release := make(chan struct{})
	reg.add(func() error {
		<-release
		return nil
	}, nil)

	drained := make(chan bool, 1)
	go func() { drained <- reg.drain(5 * time.Second) }()

	select {
	case <-drained:
		t.Fatal("drain returned before the task completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case ok := <-drained:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("drain did not return after the task completed")
	}
}

func TestBackgroundTaskRegistry_drain_timesOutWithPendingTask(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	release := make(chan struct{})
	defer close(release)
	reg.add(func() error {
		<-release
		return nil
	}, nil)

	assert.False(t, reg.drain(20*time.Millisecond))
}

func TestBackgroundTaskRegistry_add_reportsErrorToCallback(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	boom := errors.New("task boom")

	var mu sync.Mutex
	var got error
	done := make(chan struct{})
	reg.add(func() error { return boom }, func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onError callback was never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, got, boom)
}

func TestBackgroundTaskRegistry_onDelta_firesOnAddAndRemove(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	var mu sync.Mutex
	var deltas []int64
	reg.onDelta = func(delta int64) {
		mu.Lock()
		deltas = append(deltas, delta)
		mu.Unlock()
	}

	release := make(chan struct{})
	reg.add(func() error { <-release; return nil }, nil)
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deltas) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, -1}, deltas)
}

func TestBackgroundTaskRegistry_multiplePendingTasksAllCounted(t *testing.T) {
	t.Parallel()

	reg := newBackgroundTaskRegistry()
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		reg.add(func() error { <-release; return nil }, nil)
	}

	require.Eventually(t, func() bool { return reg.count() == 3 }, time.Second, time.Millisecond)
	close(release)
	require.Eventually(t, func() bool { return reg.count() == 0 }, time.Second, time.Millisecond)
}
