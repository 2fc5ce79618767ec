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

package diff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coedit-team/coedit/pkg/diff"
)

func TestCompare(t *testing.T) {
	t.Run("identical contents yield empty diff", func(t *testing.T) {
		result := diff.Compare("a\nb\nc", "a\nb\nc")
		assert.Empty(t, result.AddedLines)
		assert.Empty(t, result.RemovedLines)
		assert.Empty(t, result.ModifiedLines)
		assert.Equal(t, 0, result.ChangeSummary.TotalChanges)
	})

	t.Run("added and modified lines", func(t *testing.T) {
		result := diff.Compare("hello\nworld", "hello\nthere\nagain")
		assert.Len(t, result.AddedLines, 1)
		assert.Equal(t, 2, result.AddedLines[0].Index)
		assert.Equal(t, "again", result.AddedLines[0].Text)

		assert.Len(t, result.ModifiedLines, 1)
		assert.Equal(t, 1, result.ModifiedLines[0].Index)
		assert.Equal(t, "world", result.ModifiedLines[0].Before)
		assert.Equal(t, "there", result.ModifiedLines[0].After)

		assert.Equal(t, 2, result.ChangeSummary.TotalChanges)
	})

	t.Run("comparison is swap-symmetric", func(t *testing.T) {
		a := "one\ntwo\nthree"
		b := "one\n2"

		forward := diff.Compare(a, b)
		backward := diff.Compare(b, a)

		assert.Equal(t, len(forward.AddedLines), len(backward.RemovedLines))
		assert.Equal(t, len(forward.RemovedLines), len(backward.AddedLines))
		assert.Equal(t, len(forward.ModifiedLines), len(backward.ModifiedLines))
		assert.Equal(t,
			forward.ChangeSummary.TotalChanges,
			backward.ChangeSummary.TotalChanges,
		)
	})
}

func TestStats(t *testing.T) {
	t.Run("counts words characters and lines", func(t *testing.T) {
		stats := diff.Stats("Hello World\nsecond line")
		assert.Equal(t, 4, stats.WordCount)
		assert.Equal(t, 23, stats.CharacterCount)
		assert.Equal(t, 2, stats.LineCount)
	})

	t.Run("empty content", func(t *testing.T) {
		stats := diff.Stats("")
		assert.Equal(t, 0, stats.WordCount)
		assert.Equal(t, 0, stats.CharacterCount)
		assert.Equal(t, 1, stats.LineCount)
	})
}
