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

// Package backend provides the backend implementation of the server. This
// package is responsible for managing the database and other resources
// required to serve collaborative editing.
package backend

import (
	"errors"
	"fmt"
	"os"

	"github.com/coedit-team/coedit/pkg/locker"
	"github.com/coedit-team/coedit/server/backend/background"
	"github.com/coedit-team/coedit/server/backend/database"
	memdb "github.com/coedit-team/coedit/server/backend/database/memory"
	"github.com/coedit-team/coedit/server/backend/database/mongo"
	"github.com/coedit-team/coedit/server/backend/messagebroker"
	"github.com/coedit-team/coedit/server/backend/pubsub"
	"github.com/coedit-team/coedit/server/logging"
	"github.com/coedit-team/coedit/server/profiling/prometheus"
)

// Backend manages the server's backend such as Database, PubSub, and the
// message broker.
type Backend struct {
	Config *Config

	// PubSub is used to publish/subscribe events to/from editing sessions.
	PubSub *pubsub.PubSub
	// Lockers is used to serialize work on a single document.
	Lockers *locker.Locker

	// Background is used to manage background tasks.
	Background *background.Background

	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics
	// DB is the database instance.
	DB database.Database
	// MsgBroker is the message producer instance.
	MsgBroker *messagebroker.Brokers
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	mongoConf *mongo.Config,
	kafkaConf *messagebroker.Config,
	metrics *prometheus.Metrics,
) (*Backend, error) {
	// 01. Build the server info with the given hostname or the hostname of
	// the current machine.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Create the lockers, pubsub, and background task manager.
	lockers := locker.New()
	pubSub := pubsub.New()
	bg := background.New(metrics)

	// 03. Create the database instance. If the MongoDB configuration is
	// given, create a MongoDB instance. Otherwise, create a memory database
	// instance.
	var db database.Database
	var err error
	if mongoConf != nil {
		db, err = mongo.Dial(mongoConf)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = memdb.New()
		if err != nil {
			return nil, err
		}
	}

	// 04. Create the message broker instance.
	broker := messagebroker.Ensure(kafkaConf)

	dbInfo := "memory"
	if mongoConf != nil {
		dbInfo = mongoConf.ConnectionURI
	}
	logging.DefaultLogger().Infof("backend created: db: %s", dbInfo)

	return &Backend{
		Config: conf,

		PubSub:  pubSub,
		Lockers: lockers,

		Background: bg,

		Metrics:   metrics,
		DB:        db,
		MsgBroker: broker,
	}, nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	var errs []error

	b.Background.Close()

	if err := b.MsgBroker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}
