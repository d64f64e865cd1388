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
	"context"

	"rivaas.dev/osrv/oserrors"
	"rivaas.dev/osrv/osrequest"
)

// Plugin is a record of six optional lifecycle hooks (§3, §4.5). Each hook
// may fail; hook failures surface through the error-stage routing in §7.
// Every hook runs at most once in its phase, except OnError which may run
// many times (once per unrecovered failure).
type Plugin struct {
	// Name identifies the plugin in logs; purely diagnostic.
	Name string

	// OnRegister runs once, in declaration order across all plugins,
	// before OnBeforeServe.
	OnRegister func(ctx context.Context) error

	// OnBeforeServe runs once, after every plugin's OnRegister has
	// completed and before the transport binds.
	OnBeforeServe func(ctx context.Context) error

	// OnAfterServe runs once, after the transport is bound. The transport
	// serves from the moment it is bound, so dispatch calls may already be
	// running while OnAfterServe runs; dispatch does not wait for it.
	OnAfterServe func(ctx context.Context) error

	// OnBeforeClose runs once, before the transport is closed.
	OnBeforeClose func(ctx context.Context) error

	// OnAfterClose runs once, after the transport close (and optional
	// background-task drain) completes.
	OnAfterClose func(ctx context.Context) error

	// OnError is notified of every unrecovered failure across every
	// stage. A reentrancy guard (see pluginRegistry.emitError) ensures a
	// nested error raised from inside OnError is logged and dropped
	// rather than re-entering the emission loop.
	OnError func(ctx context.Context, stage oserrors.Stage, err error, stackTrace string, req *osrequest.Request)
}

// pluginRegistry runs a Server's plugins in declaration order and enforces
// the OnError reentrancy guard described in §4.1.
type pluginRegistry struct {
	plugins []Plugin
	// inError is set while emitError is iterating plugins, so a nested
	// failure raised from inside a plugin's OnError does not re-enter
	// the loop.
	inError bool
}

func newPluginRegistry(plugins []Plugin) *pluginRegistry {
	return &pluginRegistry{plugins: append([]Plugin(nil), plugins...)}
}

func (pr *pluginRegistry) runRegister(ctx context.Context) error {
	for _, p := range pr.plugins {
		if p.OnRegister == nil {
			continue
		}
		if err := p.OnRegister(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (pr *pluginRegistry) runBeforeServe(ctx context.Context) error {
	for _, p := range pr.plugins {
		if p.OnBeforeServe == nil {
			continue
		}
		if err := p.OnBeforeServe(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (pr *pluginRegistry) runAfterServe(ctx context.Context) error {
	for _, p := range pr.plugins {
		if p.OnAfterServe == nil {
			continue
		}
		if err := p.OnAfterServe(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (pr *pluginRegistry) runBeforeClose(ctx context.Context) error {
	for _, p := range pr.plugins {
		if p.OnBeforeClose == nil {
			continue
		}
		if err := p.OnBeforeClose(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (pr *pluginRegistry) runAfterClose(ctx context.Context) error {
	for _, p := range pr.plugins {
		if p.OnAfterClose == nil {
			continue
		}
		if err := p.OnAfterClose(ctx); err != nil {
			return err
		}
	}
	return nil
}

// emitError notifies every plugin's OnError hook. If a plugin's OnError
// itself panics or is invoked while emitError is already running (a nested
// error raised from within a prior OnError call), the nested failure is
// logged by the caller and dropped rather than re-entering this loop.
func (pr *pluginRegistry) emitError(ctx context.Context, stage oserrors.Stage, err error, stackTrace string, req *osrequest.Request, onDropped func(error)) {
	if pr.inError {
		if onDropped != nil {
			onDropped(err)
		}
		return
	}
	pr.inError = true
	defer func() { pr.inError = false }()

	for _, p := range pr.plugins {
		if p.OnError == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil && onDropped != nil {
					onDropped(&oserrors.HandlerError{Panic: r})
				}
			}()
			p.OnError(ctx, stage, err, stackTrace, req)
		}()
	}
}
