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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coedit-team/coedit/server/backend"
	"github.com/coedit-team/coedit/server/backend/database/mongo"
	"github.com/coedit-team/coedit/server/backend/messagebroker"
	"github.com/coedit-team/coedit/server/profiling"
)

// Below are the values of the default values of Coedit config.
const (
	DefaultProfilingPort = 8081

	DefaultOpWindowSize              = 100
	DefaultOpDedupCacheSize          = 10000
	DefaultOpDedupCacheTTL           = 10 * time.Minute
	DefaultRevisionMaxRetries        = 5
	DefaultRevisionRetryBaseInterval = 100 * time.Millisecond
	DefaultRevisionQueueSize         = 256
	DefaultHistoryMaxVersions        = 0
	DefaultHistoryRetention          = 0 * time.Second
	DefaultDocSubscriptionLimit      = 100
	DefaultPageSize                  = 20

	DefaultMongoConnectionURI     = "mongodb://localhost:27017"
	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultMongoCoeditDatabase    = "coedit-meta"

	DefaultKafkaDocEventsTopic      = "doc-events"
	DefaultKafkaRevisionEventsTopic = "revision-events"

	DefaultHostname = ""
)

// Config is the configuration for creating a Coedit instance.
type Config struct {
	Profiling *profiling.Config     `yaml:"Profiling"`
	Backend   *backend.Config       `yaml:"Backend"`
	Mongo     *mongo.Config         `yaml:"Mongo"`
	Kafka     *messagebroker.Config `yaml:"Kafka"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	conf := &Config{
		Profiling: &profiling.Config{
			Port: DefaultProfilingPort,
		},
		Backend: &backend.Config{},
	}
	conf.ensureDefaultValue()
	return conf
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	if c.Mongo != nil {
		if err := c.Mongo.Validate(); err != nil {
			return err
		}
	}

	if c.Kafka != nil {
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}
	if c.Backend.OpWindowSize == 0 {
		c.Backend.OpWindowSize = DefaultOpWindowSize
	}
	if c.Backend.OpDedupCacheSize == 0 {
		c.Backend.OpDedupCacheSize = DefaultOpDedupCacheSize
	}
	if c.Backend.OpDedupCacheTTL == "" {
		c.Backend.OpDedupCacheTTL = DefaultOpDedupCacheTTL.String()
	}
	if c.Backend.RevisionMaxRetries == 0 {
		c.Backend.RevisionMaxRetries = DefaultRevisionMaxRetries
	}
	if c.Backend.RevisionRetryBaseInterval == "" {
		c.Backend.RevisionRetryBaseInterval = DefaultRevisionRetryBaseInterval.String()
	}
	if c.Backend.RevisionQueueSize == 0 {
		c.Backend.RevisionQueueSize = DefaultRevisionQueueSize
	}
	if c.Backend.HistoryMaxVersions == 0 {
		c.Backend.HistoryMaxVersions = DefaultHistoryMaxVersions
	}
	if c.Backend.HistoryRetention == "" {
		c.Backend.HistoryRetention = DefaultHistoryRetention.String()
	}
	if c.Backend.DocSubscriptionLimit == 0 {
		c.Backend.DocSubscriptionLimit = DefaultDocSubscriptionLimit
	}
	if c.Backend.DefaultPageSize == 0 {
		c.Backend.DefaultPageSize = DefaultPageSize
	}
	if c.Backend.Hostname == "" {
		c.Backend.Hostname = DefaultHostname
	}

	if c.Mongo != nil {
		if c.Mongo.ConnectionURI == "" {
			c.Mongo.ConnectionURI = DefaultMongoConnectionURI
		}

		if c.Mongo.ConnectionTimeout == "" {
			c.Mongo.ConnectionTimeout = DefaultMongoConnectionTimeout.String()
		}

		if c.Mongo.CoeditDatabase == "" {
			c.Mongo.CoeditDatabase = DefaultMongoCoeditDatabase
		}

		if c.Mongo.PingTimeout == "" {
			c.Mongo.PingTimeout = DefaultMongoPingTimeout.String()
		}
	}

	if c.Kafka != nil && c.Kafka.Addresses != "" {
		if c.Kafka.DocEventsTopic == "" {
			c.Kafka.DocEventsTopic = DefaultKafkaDocEventsTopic
		}
		if c.Kafka.RevisionEventsTopic == "" {
			c.Kafka.RevisionEventsTopic = DefaultKafkaRevisionEventsTopic
		}
	}
}
