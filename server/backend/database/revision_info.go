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
	"github.com/coedit-team/coedit/pkg/diff"
)

// RevisionInfo is a structure representing a single entry of a document's
// append-only revision ledger.
type RevisionInfo struct {
	// ID is the unique ID of the revision.
	ID string `bson:"_id"`

	// DocID is the ID of the document this revision belongs to.
	DocID string `bson:"doc_id"`

	// Version is the document version this revision captured.
	Version int64 `bson:"version"`

	// Content is the full document text at this version.
	Content string `bson:"content"`

	// Title is the document title at the time of capture.
	Title string `bson:"title"`

	// IsSnapshot marks a named checkpoint. Snapshots are exempt from pruning.
	IsSnapshot bool `bson:"is_snapshot"`

	// SnapshotName is the user-given name of the snapshot, if any.
	SnapshotName string `bson:"snapshot_name,omitempty"`

	// SnapshotDescription is the user-given description of the snapshot.
	SnapshotDescription string `bson:"snapshot_description,omitempty"`

	// CreatedBy is the user whose operation produced this revision.
	CreatedBy string `bson:"created_by"`

	// CreatedAt is the time the revision was recorded.
	CreatedAt gotime.Time `bson:"created_at"`

	// ChangeSummary counts line changes relative to the previous revision.
	ChangeSummary types.ChangeSummary `bson:"change_summary"`

	// Stats carries size metadata of the content.
	Stats types.ContentStats `bson:"stats"`

	// Tags are free-form labels such as "rollback".
	Tags []string `bson:"tags,omitempty"`

	// IsAutoSave marks revisions recorded automatically rather than by an
	// explicit user action.
	IsAutoSave bool `bson:"is_auto_save"`
}

// NewRevisionInfo builds a revision from the previous content, computing the
// change summary and content stats.
func NewRevisionInfo(
	id string,
	docID string,
	version int64,
	prevContent string,
	content string,
	title string,
	createdBy string,
	createdAt gotime.Time,
) *RevisionInfo {
	return &RevisionInfo{
		ID:            id,
		DocID:         docID,
		Version:       version,
		Content:       content,
		Title:         title,
		CreatedBy:     createdBy,
		CreatedAt:     createdAt,
		ChangeSummary: diff.Summarize(prevContent, content),
		Stats:         diff.Stats(content),
		IsAutoSave:    true,
	}
}

// DeepCopy returns a deep copy of this RevisionInfo.
func (info *RevisionInfo) DeepCopy() *RevisionInfo {
	if info == nil {
		return nil
	}

	copied := *info
	copied.Tags = slices.Clone(info.Tags)
	return &copied
}

// ToRecord converts this RevisionInfo to a RevisionRecord.
func (info *RevisionInfo) ToRecord() *types.RevisionRecord {
	return &types.RevisionRecord{
		DocumentID:          info.DocID,
		Version:             info.Version,
		Content:             info.Content,
		Title:               info.Title,
		IsSnapshot:          info.IsSnapshot,
		SnapshotName:        info.SnapshotName,
		SnapshotDescription: info.SnapshotDescription,
		CreatedBy:           info.CreatedBy,
		CreatedAt:           info.CreatedAt,
		ChangeSummary:       info.ChangeSummary,
		Metadata:            info.Stats,
		Tags:                slices.Clone(info.Tags),
		IsAutoSave:          info.IsAutoSave,
	}
}

// ToTimelineEntry converts this RevisionInfo to a compact timeline entry.
func (info *RevisionInfo) ToTimelineEntry() types.TimelineEntry {
	return types.TimelineEntry{
		Version:      info.Version,
		CreatedBy:    info.CreatedBy,
		CreatedAt:    info.CreatedAt,
		TotalChanges: info.ChangeSummary.TotalChanges,
		IsSnapshot:   info.IsSnapshot,
	}
}
