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

package database

import (
	"slices"
	gotime "time"

	"github.com/coedit-team/coedit/api/types"
)

// DocInfo is a structure representing information of a document.
type DocInfo struct {
	// ID is the unique ID of the document.
	ID string `bson:"_id"`

	// Title is the human-readable title of the document.
	Title string `bson:"title"`

	// Content is the current full text of the document.
	Content string `bson:"content"`

	// Version is incremented by one for every accepted operation.
	Version int64 `bson:"version"`

	// OwnerID is the user that created the document. The owner is always a
	// collaborator.
	OwnerID string `bson:"owner_id"`

	// RoomID is the collaboration room the document belongs to.
	RoomID string `bson:"room_id"`

	// Collaborators are the users allowed to edit the document.
	Collaborators []string `bson:"collaborators"`

	// IsPublic marks the document readable by any user.
	IsPublic bool `bson:"is_public"`

	// CreatedAt is the time the document was created.
	CreatedAt gotime.Time `bson:"created_at"`

	// UpdatedAt is the time of the last accepted operation.
	UpdatedAt gotime.Time `bson:"updated_at"`
}

// DeepCopy returns a deep copy of this DocInfo.
func (info *DocInfo) DeepCopy() *DocInfo {
	if info == nil {
		return nil
	}

	copied := *info
	copied.Collaborators = slices.Clone(info.Collaborators)
	return &copied
}

// HasCollaborator returns whether the given user may edit the document.
func (info *DocInfo) HasCollaborator(userID string) bool {
	return slices.Contains(info.Collaborators, userID)
}

// CanRead returns whether the given user may read the document.
func (info *DocInfo) CanRead(userID string) bool {
	return info.IsPublic || info.HasCollaborator(userID)
}

// ToSummary converts this DocInfo to a DocumentSummary.
func (info *DocInfo) ToSummary() *types.DocumentSummary {
	return &types.DocumentSummary{
		ID:            info.ID,
		Title:         info.Title,
		Version:       info.Version,
		OwnerID:       info.OwnerID,
		RoomID:        info.RoomID,
		Collaborators: slices.Clone(info.Collaborators),
		IsPublic:      info.IsPublic,
		CreatedAt:     info.CreatedAt,
		LastModified:  info.UpdatedAt,
	}
}
