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

// Package messagebroker provides the message broker implementation used to
// stream document events to external consumers.
package messagebroker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/api/types/events"
	"github.com/coedit-team/coedit/server/logging"
)

// Message represents a message that can be sent to the message broker.
type Message interface {
	Marshal() ([]byte, error)
}

// DocEventMessage represents a message for document events such as accepted
// operations and presence changes.
type DocEventMessage struct {
	DocumentID string                   `json:"document_id"`
	EventType  events.DocEventType      `json:"event_type"`
	UserID     string                   `json:"user_id"`
	Operation  *types.AcceptedOperation `json:"operation,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

// RevisionEventMessage represents a message for revision ledger writes.
type RevisionEventMessage struct {
	DocumentID string    `json:"document_id"`
	Version    int64     `json:"version"`
	CreatedBy  string    `json:"created_by"`
	IsSnapshot bool      `json:"is_snapshot"`
	Timestamp  time.Time `json:"timestamp"`
}

// Marshal marshals the document event message to JSON.
func (m DocEventMessage) Marshal() ([]byte, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	return encoded, nil
}

// Marshal marshals the revision event message to JSON.
func (m RevisionEventMessage) Marshal() ([]byte, error) {
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	return encoded, nil
}

// Broker is an interface for the message broker.
type Broker interface {
	Produce(ctx context.Context, msg Message) error
	Close() error
}

// Brokers manages message brokers for different event types.
type Brokers struct {
	docEvents      Broker
	revisionEvents Broker
}

// DocEvents returns the broker for document events.
func (b *Brokers) DocEvents() Broker {
	return b.docEvents
}

// RevisionEvents returns the broker for revision events.
func (b *Brokers) RevisionEvents() Broker {
	return b.revisionEvents
}

// Close closes all brokers.
func (b *Brokers) Close() error {
	if err := b.docEvents.Close(); err != nil {
		return err
	}
	return b.revisionEvents.Close()
}

// Ensure creates a message broker based on the given configuration.
// If the configuration is nil or invalid, it returns a Brokers instance with
// DummyBroker for all fields, allowing callers to use the brokers without
// nil checks.
func Ensure(kafkaConf *Config) *Brokers {
	dummy := &DummyBroker{}
	brokers := &Brokers{
		docEvents:      dummy,
		revisionEvents: dummy,
	}

	if kafkaConf == nil {
		return brokers
	}

	if err := kafkaConf.Validate(); err != nil {
		logging.DefaultLogger().Warnf("invalid kafka configuration: %v", err)
		return brokers
	}

	topics := []string{
		kafkaConf.DocEventsTopic,
		kafkaConf.RevisionEventsTopic,
	}

	logging.DefaultLogger().Infof(
		"connecting to kafka: %s, topics: %s",
		kafkaConf.Addresses,
		strings.Join(topics, ","),
	)

	addresses := kafkaConf.SplitAddresses()
	if kafkaConf.DocEventsTopic != "" {
		brokers.docEvents = newKafkaBroker(addresses, kafkaConf.DocEventsTopic)
	}
	if kafkaConf.RevisionEventsTopic != "" {
		brokers.revisionEvents = newKafkaBroker(addresses, kafkaConf.RevisionEventsTopic)
	}

	return brokers
}
