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

package pubsub

import (
	"sync"
	gotime "time"

	"github.com/rs/xid"

	"github.com/coedit-team/coedit/api/types/events"
	"github.com/coedit-team/coedit/pkg/cmap"
)

const (
	// publishTimeout is the timeout for publishing an event.
	publishTimeout = 100 * gotime.Millisecond

	// eventBufferSize is the size of each subscription's event channel.
	eventBufferSize = 16
)

// Subscription represents a subscription of a subscriber to document events.
type Subscription struct {
	id         string
	subscriber string
	mu         sync.Mutex
	closed     bool
	events     chan events.DocEvent
}

// NewSubscription creates a new instance of Subscription.
func NewSubscription(subscriber string) *Subscription {
	return &Subscription{
		id:         xid.New().String(),
		subscriber: subscriber,
		events:     make(chan events.DocEvent, eventBufferSize),
	}
}

// ID returns the id of this subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the event channel of this subscription.
func (s *Subscription) Events() chan events.DocEvent {
	return s.events
}

// Subscriber returns the subscriber of this subscription.
func (s *Subscription) Subscriber() string {
	return s.subscriber
}

// Close closes all resources of this Subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Publish publishes the given event to the subscriber. Slow subscribers are
// skipped after publishTimeout rather than blocking the publisher.
func (s *Subscription) Publish(event events.DocEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	case <-gotime.After(publishTimeout):
		return false
	}
}

// Subscriptions is a collection of subscriptions to a single document.
type Subscriptions struct {
	docID       string
	internalMap *cmap.Map[string, *Subscription]
}

func newSubscriptions(docID string) *Subscriptions {
	return &Subscriptions{
		docID:       docID,
		internalMap: cmap.New[string, *Subscription](),
	}
}

// Set adds the given subscription.
func (s *Subscriptions) Set(sub *Subscription) {
	s.internalMap.Set(sub.ID(), sub)
}

// Delete deletes the subscription of the given id.
func (s *Subscriptions) Delete(id string) {
	s.internalMap.Delete(id, func(sub *Subscription, exists bool) bool {
		return exists
	})
}

// Len returns the number of subscriptions.
func (s *Subscriptions) Len() int {
	return s.internalMap.Len()
}

// Values returns the subscriptions of this collection.
func (s *Subscriptions) Values() []*Subscription {
	return s.internalMap.Values()
}

// Close closes all subscriptions of this collection.
func (s *Subscriptions) Close() {
	for _, sub := range s.internalMap.Values() {
		sub.Close()
	}
}
