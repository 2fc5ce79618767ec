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

// Package events provides the event payloads published to live subscribers
// and to the message broker.
package events

import (
	"time"

	"github.com/coedit-team/coedit/api/types"
)

// DocEventType is the type of events that occur on a document.
type DocEventType string

const (
	// DocOperationAccepted is published when an operation has been accepted
	// and applied. The payload carries the transformed operation.
	DocOperationAccepted DocEventType = "operation-accepted"

	// DocUserJoined is published when a user joins a document.
	DocUserJoined DocEventType = "user-joined"

	// DocUserLeft is published when a user leaves a document.
	DocUserLeft DocEventType = "user-left"
)

// DocEvent is an event that occurred on a document.
type DocEvent struct {
	// Type is the type of the event.
	Type DocEventType `json:"type"`

	// DocumentID is the document the event occurred on.
	DocumentID string `json:"documentId"`

	// UserID is the user that caused the event.
	UserID string `json:"userId"`

	// Operation is set for DocOperationAccepted.
	Operation *types.AcceptedOperation `json:"operation,omitempty"`

	// OccurredAt is the server-side event time.
	OccurredAt time.Time `json:"occurredAt"`
}
