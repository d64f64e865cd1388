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
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeGate struct {
	ready bool
	name  string
}

func (g *fakeGate) Ready() bool  { return g.ready }
func (g *fakeGate) Name() string { return g.name }

func TestReadinessManager_Register(t *testing.T) {
	t.Parallel()

	rm := &ReadinessManager{}
	rm.Register("db", &fakeGate{ready: true, name: "db"})

	ready, status := rm.Check()
	assert.True(t, ready)
	assert.True(t, status["db"])
}

func TestReadinessManager_Register_replacesExisting(t *testing.T) {
	t.Parallel()

	rm := &ReadinessManager{}
	rm.Register("svc", &fakeGate{ready: false, name: "svc"})
	rm.Register("svc", &fakeGate{ready: true, name: "svc"})

	ready, status := rm.Check()
	assert.True(t, ready)
	assert.True(t, status["svc"])
}

func TestReadinessManager_Unregister(t *testing.T) {
	t.Parallel()

	rm := &ReadinessManager{}
	rm.Register("a", &fakeGate{ready: true, name: "a"})
	rm.Unregister("a")

	ready, status := rm.Check()
	assert.True(t, ready)
	assert.Nil(t, status)
}

func TestReadinessManager_Unregister_idempotent(t *testing.T) {
	t.Parallel()

	rm := &ReadinessManager{}
	rm.Unregister("nonexistent")
	rm.Unregister("nonexistent")

	ready, status := rm.Check()
	assert.True(t, ready)
	assert.Nil(t, status)
}

func TestReadinessManager_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		gates     map[string]bool
		wantReady bool
	}{
		{name: "no gates", gates: nil, wantReady: true},
		{name: "all ready", gates: map[string]bool{"a": true, "b": true}, wantReady: true},
		{name: "one not ready", gates: map[string]bool{"a": true, "b": false}, wantReady: false},
		{name: "none ready", gates: map[string]bool{"a": false, "b": false}, wantReady: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rm := &ReadinessManager{}
			for name, ready := range tt.gates {
				rm.Register(name, &fakeGate{ready: ready, name: name})
			}

			gotReady, status := rm.Check()
			assert.Equal(t, tt.wantReady, gotReady)
			assert.Len(t, status, len(tt.gates))
		})
	}
}

func TestReadinessManager_Check_falseBeforeServing(t *testing.T) {
	t.Parallel()

	lc := &lifecycle{}
	rm := newReadinessManager(lc, nil)
	rm.Register("db", &fakeGate{ready: true, name: "db"})

	ready, status := rm.Check()
	assert.False(t, ready)
	assert.Equal(t, map[string]bool{"server": false}, status)
}

func TestReadinessManager_Check_consultsGatesOnceServing(t *testing.T) {
	t.Parallel()

	lc := &lifecycle{}
	lc.set(stateServing)
	rm := newReadinessManager(lc, nil)
	rm.Register("db", &fakeGate{ready: true, name: "db"})

	ready, status := rm.Check()
	assert.True(t, ready)
	assert.True(t, status["db"])
}

func TestReadinessManager_Check_falseAgainOnceDraining(t *testing.T) {
	t.Parallel()

	lc := &lifecycle{}
	lc.set(stateServing)
	rm := newReadinessManager(lc, nil)
	rm.Register("db", &fakeGate{ready: true, name: "db"})

	readyWhileServing, _ := rm.Check()
	assert.True(t, readyWhileServing)

	lc.set(stateDraining)
	readyWhileDraining, _ := rm.Check()
	assert.False(t, readyWhileDraining)
}
