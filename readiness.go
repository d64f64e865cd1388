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

	"rivaas.dev/osrv/oslog"
)

// ReadinessGate reports whether a component is ready to serve traffic —
// a database pool, an upstream client, anything whose own health should
// gate whether this Server is reported ready. The core never consults
// gates itself; a bridge or native health endpoint built on top of osrv
// calls Server.Readiness().Check() and decides what to do with the result.
type ReadinessGate interface {
	Ready() bool
	Name() string
}

// ReadinessManager tracks a dynamic set of ReadinessGates against the
// owning Server's lifecycle: Check reports not-ready on its own, without
// consulting a single gate, until the server has actually reached
// stateServing, and again once it starts Draining. A database pool that
// reports itself Ready during Server.onBeforeServe hooks shouldn't make a
// /readyz probe pass before Serve has actually bound a listener. Safe for
// concurrent use.
type ReadinessManager struct {
	mu        sync.RWMutex
	gates     map[string]ReadinessGate
	lifecycle *lifecycle
	logger    *oslog.Logger

	logMu     sync.Mutex
	lastReady *bool // edge-triggered log line on ready/not-ready transitions
}

// newReadinessManager builds a ReadinessManager bound to the Server's own
// lifecycle and logger, so state changes and registrations are observable
// in the same log stream as the rest of Serve/Close.
func newReadinessManager(lc *lifecycle, logger *oslog.Logger) *ReadinessManager {
	return &ReadinessManager{lifecycle: lc, logger: logger}
}

// Register adds or replaces a gate under name.
func (rm *ReadinessManager) Register(name string, gate ReadinessGate) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.gates == nil {
		rm.gates = make(map[string]ReadinessGate)
	}
	rm.gates[name] = gate
	if rm.logger != nil {
		rm.logger.Debug("readiness gate registered", "gate", name)
	}
}

// Unregister removes the gate registered under name, if any.
func (rm *ReadinessManager) Unregister(name string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.gates, name)
	if rm.logger != nil {
		rm.logger.Debug("readiness gate unregistered", "gate", name)
	}
}

// Check reports whether the server is ready to serve traffic, along with
// each registered gate's individual status by name. Before the server
// reaches stateServing, or once it starts Draining, Check returns false
// with a synthetic "server" entry instead of consulting gates: readiness
// tracks whether traffic should be routed here at all, not merely whether
// dependencies are healthy. An empty gate set while serving is ready.
func (rm *ReadinessManager) Check() (bool, map[string]bool) {
	if rm.lifecycle != nil {
		if s := rm.lifecycle.get(); s != stateServing {
			rm.logTransition(false)
			return false, map[string]bool{"server": false}
		}
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if len(rm.gates) == 0 {
		rm.logTransition(true)
		return true, nil
	}

	status := make(map[string]bool, len(rm.gates))
	allReady := true
	for name, gate := range rm.gates {
		ready := gate.Ready()
		status[name] = ready
		if !ready {
			allReady = false
		}
	}
	rm.logTransition(allReady)
	return allReady, status
}

// logTransition emits one warning/info line the moment overall readiness
// flips, instead of once per poll — a health endpoint typically calls
// Check on every probe, and logging every call would flood the log stream.
func (rm *ReadinessManager) logTransition(ready bool) {
	if rm.logger == nil {
		return
	}

	rm.logMu.Lock()
	changed := rm.lastReady == nil || *rm.lastReady != ready
	rm.lastReady = &ready
	rm.logMu.Unlock()
	if !changed {
		return
	}

	if ready {
		rm.logger.Info("readiness check passing")
	} else {
		rm.logger.Warn("readiness check failing")
	}
}
