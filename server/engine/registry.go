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

package engine

import (
	"sync"
	"sync/atomic"
	gotime "time"

	"github.com/coedit-team/coedit/api/types"
	"github.com/coedit-team/coedit/server/backend/database"
)

// docEntry is the warm in-memory state of a single document. Mutations
// happen only while holding the document's named lock; mu additionally
// guards the fields so snapshot reads need no serialization lock.
type docEntry struct {
	mu sync.RWMutex

	content   string
	version   int64
	title     string
	updatedAt gotime.Time

	// recent is the window of accepted operations retained for transforming
	// stale submissions, oldest first.
	recent []types.AcceptedOperation

	// degraded is set when revision persistence exhausted its retries.
	degraded atomic.Bool

	// queue carries pending revision writes to the document's writer
	// goroutine in version order.
	queue chan *database.RevisionInfo
}

func newDocEntry(info *database.DocInfo, queueSize int) *docEntry {
	return &docEntry{
		content:   info.Content,
		version:   info.Version,
		title:     info.Title,
		updatedAt: info.UpdatedAt,
		queue:     make(chan *database.RevisionInfo, queueSize),
	}
}

// apply records an accepted operation, trimming the window to the given
// size.
func (d *docEntry) apply(info *database.DocInfo, accepted types.AcceptedOperation, window int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.content = info.Content
	d.version = info.Version
	d.title = info.Title
	d.updatedAt = info.UpdatedAt

	d.recent = append(d.recent, accepted)
	if window > 0 && len(d.recent) > window {
		d.recent = d.recent[len(d.recent)-window:]
	}
}

// replace resets the entry to the stored state and clears the operation
// window, forcing stale clients to resync.
func (d *docEntry) replace(info *database.DocInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.content = info.Content
	d.version = info.Version
	d.title = info.Title
	d.updatedAt = info.UpdatedAt
	d.recent = nil
}

// snapshot returns a consistent read of the entry's content and version.
func (d *docEntry) snapshot() (string, int64, gotime.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.content, d.version, d.updatedAt
}

func (d *docEntry) isDegraded() bool {
	return d.degraded.Load()
}

// markDegraded sets the degraded mark and reports whether it was newly set.
func (d *docEntry) markDegraded() bool {
	return d.degraded.CompareAndSwap(false, true)
}

// clearDegraded clears the degraded mark and reports whether it was set.
func (d *docEntry) clearDegraded() bool {
	return d.degraded.CompareAndSwap(true, false)
}
