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

package types

import (
	"time"
)

// ChangeSummary counts line-level changes of a revision relative to the
// immediately preceding one.
type ChangeSummary struct {
	AddedLines    int `json:"addedLines"`
	RemovedLines  int `json:"removedLines"`
	ModifiedLines int `json:"modifiedLines"`
	TotalChanges  int `json:"totalChanges"`
}

// ContentStats carries size metadata of a revision's content.
type ContentStats struct {
	WordCount      int `json:"wordCount"`
	CharacterCount int `json:"characterCount"`
	LineCount      int `json:"lineCount"`
}

// LineChange is a single line present on only one side of a comparison.
type LineChange struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ModifiedLine is a line present in both versions with differing text.
type ModifiedLine struct {
	Index  int    `json:"index"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// DiffResult is the response shape of a version comparison.
type DiffResult struct {
	AddedLines    []LineChange   `json:"addedLines"`
	RemovedLines  []LineChange   `json:"removedLines"`
	ModifiedLines []ModifiedLine `json:"modifiedLines"`
	ChangeSummary ChangeSummary  `json:"changeSummary"`
}

// RevisionRecord is the response shape of history, version and snapshot
// queries.
type RevisionRecord struct {
	DocumentID          string        `json:"documentId"`
	Version             int64         `json:"version"`
	Content             string        `json:"content"`
	Title               string        `json:"title"`
	IsSnapshot          bool          `json:"isSnapshot"`
	SnapshotName        string        `json:"snapshotName,omitempty"`
	SnapshotDescription string        `json:"snapshotDescription,omitempty"`
	CreatedBy           string        `json:"createdBy"`
	CreatedAt           time.Time     `json:"createdAt"`
	ChangeSummary       ChangeSummary `json:"changeSummary"`
	Metadata            ContentStats  `json:"metadata"`
	Tags                []string      `json:"tags"`
	IsAutoSave          bool          `json:"isAutoSave"`
}

// TimelineEntry is a compact history entry without content, used by the
// history response's timeline.
type TimelineEntry struct {
	Version      int64     `json:"version"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	TotalChanges int       `json:"totalChanges"`
	IsSnapshot   bool      `json:"isSnapshot"`
}

// HistoryResult is the paginated response shape of a history query.
type HistoryResult struct {
	Revisions     []*RevisionRecord `json:"revisions"`
	Total         int               `json:"total"`
	Snapshots     int               `json:"snapshots"`
	Collaborators []string          `json:"collaborators"`
	Timeline      []TimelineEntry   `json:"timeline"`
}
