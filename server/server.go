/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server provides the Coedit server which is the main entry point of
// the Coedit system. The server wires the storage backend, the operation
// engine and the collaboration gateway together.
package server

import (
	gosync "sync"

	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/collab"
	"github.com/coedit-team/coedit/server/engine"
	"github.com/coedit-team/coedit/server/presence"
	"github.com/coedit-team/coedit/server/profiling"
	"github.com/coedit-team/coedit/server/profiling/prometheus"
)

// Coedit is a server of Coedit.
// The server accepts operations from clients, applies them to the canonical
// document state, records every version in the revision ledger, and
// propagates accepted operations to the document's participants.
type Coedit struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	engine          *engine.Engine
	gateway         *collab.Gateway
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Coedit.
func New(conf *Config) (*Coedit, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(
		conf.Backend,
		conf.Mongo,
		conf.Kafka,
		metrics,
	)
	if err != nil {
		return nil, err
	}

	tracker := presence.NewTracker(metrics)
	eng, err := engine.New(be, tracker)
	if err != nil {
		return nil, err
	}

	gateway := collab.NewGateway(
		be,
		eng,
		tracker,
		collab.NewDocAuthorizer(be),
		collab.OpenDirectory{},
	)

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &Coedit{
		conf:            conf,
		backend:         be,
		engine:          eng,
		gateway:         gateway,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the profiling port.
func (r *Coedit) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return nil
}

// Shutdown shuts down this Coedit server.
func (r *Coedit) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *Coedit) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// Gateway returns the collaboration gateway.
func (r *Coedit) Gateway() *collab.Gateway {
	return r.gateway
}

// Engine returns the operation engine. It is used for testing and for
// operator recovery of degraded documents.
func (r *Coedit) Engine() *engine.Engine {
	return r.engine
}

// Backend returns the backend of this server.
func (r *Coedit) Backend() *backend.Backend {
	return r.backend
}
