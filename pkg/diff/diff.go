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

// Package diff provides line-based comparison of document contents and the
// change summaries and content statistics stored with each revision.
package diff

import (
	"strings"

	"github.com/coedit-team/coedit/api/types"
)

// Compare computes the line-based difference from a to b. A line index
// present in both contents with differing text is modified; an index present
// only in b is added; an index present only in a is removed. The result is
// order-preserving, and Compare(b, a) yields swapped added/removed sets.
func Compare(a, b string) types.DiffResult {
	aLines := strings.Split(a, "\n")
	bLines := strings.Split(b, "\n")

	result := types.DiffResult{
		AddedLines:    []types.LineChange{},
		RemovedLines:  []types.LineChange{},
		ModifiedLines: []types.ModifiedLine{},
	}

	common := len(aLines)
	if len(bLines) < common {
		common = len(bLines)
	}

	for i := 0; i < common; i++ {
		if aLines[i] != bLines[i] {
			result.ModifiedLines = append(result.ModifiedLines, types.ModifiedLine{
				Index:  i,
				Before: aLines[i],
				After:  bLines[i],
			})
		}
	}
	for i := common; i < len(bLines); i++ {
		result.AddedLines = append(result.AddedLines, types.LineChange{
			Index: i,
			Text:  bLines[i],
		})
	}
	for i := common; i < len(aLines); i++ {
		result.RemovedLines = append(result.RemovedLines, types.LineChange{
			Index: i,
			Text:  aLines[i],
		})
	}

	result.ChangeSummary = types.ChangeSummary{
		AddedLines:    len(result.AddedLines),
		RemovedLines:  len(result.RemovedLines),
		ModifiedLines: len(result.ModifiedLines),
		TotalChanges:  len(result.AddedLines) + len(result.RemovedLines) + len(result.ModifiedLines),
	}

	return result
}

// Summarize returns only the change counts of Compare(a, b).
func Summarize(a, b string) types.ChangeSummary {
	return Compare(a, b).ChangeSummary
}

// Stats computes the content statistics stored in revision metadata: words
// are whitespace-delimited tokens, characters are bytes of content, and
// lines are newline-delimited segments.
func Stats(content string) types.ContentStats {
	return types.ContentStats{
		WordCount:      len(strings.Fields(content)),
		CharacterCount: len(content),
		LineCount:      strings.Count(content, "\n") + 1,
	}
}
