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

// Package pubsub provides the in-process event fan-out between editing
// sessions of the same document.
package pubsub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coedit-team/coedit/api/types/events"
	"github.com/coedit-team/coedit/pkg/cmap"
	"github.com/coedit-team/coedit/pkg/errors"
	"github.com/coedit-team/coedit/server/logging"
)

var (
	// ErrTooManySubscribers is returned when the subscription limit is exceeded.
	ErrTooManySubscribers = errors.ResourceExhausted("subscription limit exceeded").WithCode("ErrTooManySubscribers")
)

// PubSub is the memory implementation of PubSub, used for single server.
type PubSub struct {
	docSubsMap *cmap.Map[string, *Subscriptions]
}

// New creates an instance of PubSub.
func New() *PubSub {
	return &PubSub{
		docSubsMap: cmap.New[string, *Subscriptions](),
	}
}

// Subscribe subscribes to events of the given document.
func (m *PubSub) Subscribe(
	ctx context.Context,
	subscriber string,
	docID string,
	limit int,
) (*Subscription, error) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Subscribe(%s,%s) Start`, docID, subscriber)
	}

	// NOTE: Upsert keeps the limit check and the insertion atomic. A nil
	// newSub after the callback means the limit was exceeded.
	var newSub *Subscription
	_ = m.docSubsMap.Upsert(docID, func(subs *Subscriptions, exists bool) *Subscriptions {
		if !exists {
			subs = newSubscriptions(docID)
		}

		if limit > 0 && subs.Len() >= limit {
			return subs
		}

		newSub = NewSubscription(subscriber)
		subs.Set(newSub)
		return subs
	})

	if newSub == nil {
		return nil, fmt.Errorf(
			"%d subscribers allowed per document: %w",
			limit,
			ErrTooManySubscribers,
		)
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Subscribe(%s,%s) End`, docID, subscriber)
	}
	return newSub, nil
}

// Unsubscribe unsubscribes the given subscription from the document.
func (m *PubSub) Unsubscribe(
	ctx context.Context,
	docID string,
	sub *Subscription,
) {
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Unsubscribe(%s,%s) Start`, docID, sub.Subscriber())
	}

	sub.Close()

	if subs, ok := m.docSubsMap.Get(docID); ok {
		subs.Delete(sub.ID())

		m.docSubsMap.Delete(docID, func(subs *Subscriptions, exists bool) bool {
			return exists && subs.Len() == 0
		})
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf(`Unsubscribe(%s,%s) End`, docID, sub.Subscriber())
	}
}

// Publish publishes the given event to all subscribers of the document
// except the publisher.
func (m *PubSub) Publish(ctx context.Context, publisher string, event events.DocEvent) {
	subs, ok := m.docSubsMap.Get(event.DocumentID)
	if !ok {
		return
	}

	for _, sub := range subs.Values() {
		if sub.Subscriber() == publisher {
			continue
		}

		if ok := sub.Publish(event); !ok {
			logging.From(ctx).Warnf(
				`Publish(%s,%s) to %s timeout`,
				event.DocumentID,
				publisher,
				sub.Subscriber(),
			)
		}
	}
}

// Subscribers returns the subscriber ids of the given document.
func (m *PubSub) Subscribers(docID string) []string {
	var ids []string
	if subs, ok := m.docSubsMap.Get(docID); ok {
		for _, sub := range subs.Values() {
			ids = append(ids, sub.Subscriber())
		}
	}
	return ids
}
