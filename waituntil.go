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
	"sync"
	"time"
)

// backgroundTaskRegistry tracks fire-and-forget work registered through
// waitUntil (§4.1, §5). It is owned exclusively by a Server; external code
// only ever mutates it through waitUntil itself.
type backgroundTaskRegistry struct {
	mu      sync.Mutex
	pending map[int64]struct{}
	nextID  int64
	done    chan struct{}

	onDelta func(delta int64)
}

func newBackgroundTaskRegistry() *backgroundTaskRegistry {
	return &backgroundTaskRegistry{pending: make(map[int64]struct{})}
}

// add registers task and runs it in its own goroutine, removing its entry
// from the pending set on completion regardless of outcome.
func (b *backgroundTaskRegistry) add(task func() error, onError func(error)) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.pending[id] = struct{}{}
	b.mu.Unlock()
	if b.onDelta != nil {
		b.onDelta(1)
	}

	go func() {
		defer b.remove(id)
		if err := task(); err != nil && onError != nil {
			onError(err)
		}
	}()
}

func (b *backgroundTaskRegistry) remove(id int64) {
	b.mu.Lock()
	delete(b.pending, id)
	empty := len(b.pending) == 0
	d := b.done
	b.mu.Unlock()
	if b.onDelta != nil {
		b.onDelta(-1)
	}
	if empty && d != nil {
		select {
		case <-d:
		default:
			close(d)
		}
	}
}

func (b *backgroundTaskRegistry) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// drain blocks until every pending task has completed or timeout elapses,
// whichever is first. It reports whether the set drained fully.
func (b *backgroundTaskRegistry) drain(timeout time.Duration) bool {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return true
	}
	d := make(chan struct{})
	b.done = d
	b.mu.Unlock()

	select {
	case <-d:
		return true
	case <-time.After(timeout):
		return false
	}
}
