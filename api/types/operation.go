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

// Package types provides the wire-level types exchanged with transport
// layers. Field names and JSON tags are bit-stable.
package types

import (
	"time"
)

// OpKind is the discriminator of an edit operation.
type OpKind string

const (
	// OpInsert inserts text at a position.
	OpInsert OpKind = "insert"

	// OpDelete removes a range of text starting at a position.
	OpDelete OpKind = "delete"

	// OpRetain keeps a range of text untouched. It never mutates content.
	OpRetain OpKind = "retain"
)

// Valid returns true if the kind is one of the known variants.
func (k OpKind) Valid() bool {
	switch k {
	case OpInsert, OpDelete, OpRetain:
		return true
	default:
		return false
	}
}

// Operation is an atomic text edit submitted by a client against a known
// base version of a document.
type Operation struct {
	// ID is the client-generated identifier used for idempotent confirmation.
	ID string `json:"id" validate:"required"`

	// Kind is one of "insert", "delete" or "retain".
	Kind OpKind `json:"kind" validate:"required,oneof=insert delete retain"`

	// Position is the 0-based offset into the document content.
	Position int `json:"position" validate:"gte=0"`

	// Content is the text to insert. Only meaningful for insert.
	Content string `json:"content,omitempty"`

	// Length is the range length for delete and retain.
	Length int `json:"length,omitempty" validate:"gte=0"`

	// AuthorID is the user submitting the operation.
	AuthorID string `json:"authorId" validate:"required"`

	// BaseVersion is the document version the client composed the
	// operation against.
	BaseVersion int64 `json:"baseVersion" validate:"gte=0"`

	// SubmittedAt is the client-side submission timestamp.
	SubmittedAt time.Time `json:"submittedAt"`
}

// AcceptedOperation is the broadcast shape of an accepted operation: the
// transformed operation plus the version it produced. This, not the original
// submission, is what must be relayed to other collaborators.
type AcceptedOperation struct {
	Operation

	// Version is the document version this operation produced.
	Version int64 `json:"version"`
}

// DocumentState is the response shape of a state query.
type DocumentState struct {
	Content      string    `json:"content"`
	Version      int64     `json:"version"`
	ActiveUsers  []string  `json:"activeUsers"`
	LastModified time.Time `json:"lastModified"`
}
