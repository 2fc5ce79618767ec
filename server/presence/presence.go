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

// Package presence tracks which users are currently editing each document.
// Membership is in-memory only; a process restart clears it and clients
// re-join after reconnecting.
package presence

import (
	"slices"
	"sync"
	gotime "time"

	"github.com/coedit-team/coedit/pkg/cmap"
	"github.com/coedit-team/coedit/server/profiling/prometheus"
)

// Entry is the ephemeral membership of a user in a document.
type Entry struct {
	UserID   string
	JoinedAt gotime.Time
}

// docPresence holds the members of a single document. It carries its own
// lock so join/leave never contends with the document's content lock.
type docPresence struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Tracker tracks the active users of each document.
type Tracker struct {
	docs    *cmap.Map[string, *docPresence]
	metrics *prometheus.Metrics
}

// NewTracker creates a new instance of Tracker.
func NewTracker(metrics *prometheus.Metrics) *Tracker {
	return &Tracker{
		docs:    cmap.New[string, *docPresence](),
		metrics: metrics,
	}
}

// Join adds the user to the document's member set. It returns false if the
// user was already present.
func (t *Tracker) Join(docID string, userID string) bool {
	doc := t.docs.Upsert(docID, func(doc *docPresence, exists bool) *docPresence {
		if !exists {
			doc = &docPresence{entries: make(map[string]Entry)}
		}
		return doc
	})

	doc.mu.Lock()
	defer doc.mu.Unlock()

	if _, ok := doc.entries[userID]; ok {
		return false
	}
	doc.entries[userID] = Entry{
		UserID:   userID,
		JoinedAt: gotime.Now(),
	}
	if t.metrics != nil {
		t.metrics.AddPresenceUser()
	}
	return true
}

// Leave removes the user from the document's member set. Removal is
// idempotent. It returns true when the document has no members left.
func (t *Tracker) Leave(docID string, userID string) bool {
	doc, ok := t.docs.Get(docID)
	if !ok {
		return true
	}

	doc.mu.Lock()
	if _, ok := doc.entries[userID]; ok {
		delete(doc.entries, userID)
		if t.metrics != nil {
			t.metrics.RemovePresenceUser()
		}
	}
	empty := len(doc.entries) == 0
	doc.mu.Unlock()

	if empty {
		t.docs.Delete(docID, func(doc *docPresence, exists bool) bool {
			if !exists {
				return false
			}
			doc.mu.RLock()
			defer doc.mu.RUnlock()
			return len(doc.entries) == 0
		})
	}
	return empty
}

// ActiveUsers returns a sorted snapshot of the document's member ids.
func (t *Tracker) ActiveUsers(docID string) []string {
	doc, ok := t.docs.Get(docID)
	if !ok {
		return nil
	}

	doc.mu.RLock()
	defer doc.mu.RUnlock()

	users := make([]string, 0, len(doc.entries))
	for userID := range doc.entries {
		users = append(users, userID)
	}
	slices.Sort(users)
	return users
}

// IsPresent returns whether the user is currently in the document.
func (t *Tracker) IsPresent(docID string, userID string) bool {
	doc, ok := t.docs.Get(docID)
	if !ok {
		return false
	}

	doc.mu.RLock()
	defer doc.mu.RUnlock()

	_, ok = doc.entries[userID]
	return ok
}

// Count returns the number of users currently in the document.
func (t *Tracker) Count(docID string) int {
	doc, ok := t.docs.Get(docID)
	if !ok {
		return 0
	}

	doc.mu.RLock()
	defer doc.mu.RUnlock()

	return len(doc.entries)
}

// Clear removes every member of the document. It is called when the
// document itself is removed.
func (t *Tracker) Clear(docID string) {
	doc, ok := t.docs.Get(docID)
	if !ok {
		return
	}

	doc.mu.Lock()
	if t.metrics != nil {
		for range doc.entries {
			t.metrics.RemovePresenceUser()
		}
	}
	doc.entries = make(map[string]Entry)
	doc.mu.Unlock()

	t.docs.Delete(docID, func(doc *docPresence, exists bool) bool {
		if !exists {
			return false
		}
		doc.mu.RLock()
		defer doc.mu.RUnlock()
		return len(doc.entries) == 0
	})
}
